package worker

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// Payload values round-trip through JSON. Fresh maps carry float64 numbers,
// but JSONMap scans database rows with UseNumber, so values reloaded from a
// job record arrive as json.Number. These readers normalize both shapes.

func payloadNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func payloadUint(p datatypes.JSONMap, keys ...string) uint {
	for _, key := range keys {
		if v, ok := payloadNumber(p[key]); ok && v > 0 {
			return uint(v)
		}
	}
	return 0
}

func payloadFloat(p datatypes.JSONMap, key string, def float64) float64 {
	if v, ok := payloadNumber(p[key]); ok && v > 0 {
		return v
	}
	return def
}

func payloadMap(p datatypes.JSONMap, key string) map[string]interface{} {
	if m, ok := p[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func payloadInt(m map[string]interface{}, key string, def int) int {
	if v, ok := payloadNumber(m[key]); ok && v > 0 {
		return int(v)
	}
	return def
}

// payloadClassMapping reads params.class_mapping with both sides lowercased.
func payloadClassMapping(p datatypes.JSONMap) map[string]string {
	params := payloadMap(p, "params")
	if params == nil {
		return map[string]string{}
	}
	raw, ok := params["class_mapping"].(map[string]interface{})
	if !ok {
		return map[string]string{}
	}
	mapping := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			mapping[strings.ToLower(k)] = strings.ToLower(s)
		}
	}
	return mapping
}

// orderedClassNames flattens an index->name map into index order.
func orderedClassNames(names map[string]string) []string {
	type indexed struct {
		idx  int
		name string
	}
	list := make([]indexed, 0, len(names))
	for k, v := range names {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		list = append(list, indexed{idx: idx, name: v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].idx < list[j].idx })

	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.name)
	}
	return out
}

func headStrings(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
