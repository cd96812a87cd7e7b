package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/datatypes"
)

// runAutoAnnotate predicts boxes for every item of a dataset and writes them
// into a fresh auto-sourced annotation set. Model class names map to project
// classes by lowercase name, optionally rerouted through params.class_mapping.
// Predictions whose class has no project counterpart are counted and skipped.
func (e *JobExecutor) runAutoAnnotate(ctx context.Context, job *entity.Job) error {
	if err := e.setRunning(ctx, job.ID, "starting"); err != nil {
		return err
	}

	modelID := payloadUint(job.Payload, "model_id", "model_weight_id")
	datasetID := payloadUint(job.Payload, "dataset_id")
	conf := payloadFloat(job.Payload, "conf", 0.25)
	iou := payloadFloat(job.Payload, "iou", 0.5)

	if _, err := e.repository.DatasetRepo.FindInProject(datasetID, job.ProjectID); err != nil {
		return fmt.Errorf("dataset not found")
	}
	mw, err := e.repository.ModelWeightRepo.FindInProject(modelID, job.ProjectID)
	if err != nil {
		return fmt.Errorf("model not found")
	}
	if mw.Framework != "ultralytics" {
		return fmt.Errorf("auto annotate supports only ultralytics .pt weights")
	}
	if exists, err := e.store.Exists(ctx, mw.RelPath); err != nil {
		return fmt.Errorf("failed to check weights object: %w", err)
	} else if !exists {
		return fmt.Errorf("weights object %s not found in storage", mw.RelPath)
	}

	classes, err := e.repository.ProjectRepo.ListClasses(job.ProjectID)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return fmt.Errorf("no label classes defined in project. please add classes first.")
	}
	nameToClassID := make(map[string]uint, len(classes))
	projectNames := make([]string, 0, len(classes))
	for _, c := range classes {
		lower := strings.ToLower(c.Name)
		nameToClassID[lower] = c.ID
		projectNames = append(projectNames, lower)
	}

	meta, err := e.inference.ModelMetadata(ctx, mw.RelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	modelNames := orderedClassNames(meta.ClassNames)
	for i := range modelNames {
		modelNames[i] = strings.ToLower(modelNames[i])
	}

	classMapping := payloadClassMapping(job.Payload)
	if len(classMapping) == 0 && len(modelNames) > 0 {
		matched := false
		for _, name := range modelNames {
			if _, ok := nameToClassID[name]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf(
				"no class mappings found. model classes: %s. project classes: %s. please map model classes to project classes in the UI.",
				strings.Join(headStrings(modelNames, 5), ", "),
				strings.Join(headStrings(projectNames, 5), ", "),
			)
		}
	}

	aset := &entity.AnnotationSet{
		ProjectID:     job.ProjectID,
		Name:          fmt.Sprintf("auto_run_%s", time.Now().UTC().Format("20060102_150405")),
		Source:        entity.SetSourceAuto,
		ModelWeightID: &mw.ID,
		Params: datatypes.JSONMap{
			"class_mapping": classMapping,
			"conf":          conf,
			"iou":           iou,
		},
	}
	if err := e.repository.AnnotationSetRepo.Create(aset); err != nil {
		return fmt.Errorf("failed to create annotation set: %w", err)
	}
	if err := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{"annotation_set_id": aset.ID}); err != nil {
		e.logger.WarningWithContextf(ctx, "[Auto Annotate] Failed to record annotation set on job %d: %v", job.ID, err)
	}

	items, err := e.repository.DatasetRepo.ListItems(datasetID)
	if err != nil {
		return err
	}
	total := len(items)
	if total == 0 {
		return e.markSuccess(ctx, job.ID, "no items")
	}

	created := 0
	skipped := 0
	for idx, item := range items {
		preds, err := e.inference.Predict(ctx, mw.RelPath, item.RelPath, conf, iou)
		if err != nil {
			e.setProgress(ctx, job.ID, float64(idx+1)/float64(total),
				fmt.Sprintf("error processing image %d/%d: %v", idx+1, total, err))
			continue
		}

		rows := make([]entity.Annotation, 0, len(preds))
		for _, p := range preds {
			name := strings.ToLower(p.ClassName)
			if name == "" {
				if n, ok := meta.ClassNames[strconv.Itoa(p.ClassIndex)]; ok {
					name = strings.ToLower(n)
				} else {
					name = strconv.Itoa(p.ClassIndex)
				}
			}
			if mapped, ok := classMapping[name]; ok {
				name = mapped
			}
			targetID, ok := nameToClassID[name]
			if !ok {
				skipped++
				continue
			}
			rows = append(rows, entity.Annotation{
				ClassID:    targetID,
				X:          p.X,
				Y:          p.Y,
				W:          p.W,
				H:          p.H,
				Confidence: p.Confidence,
			})
			created++
		}

		if err := e.repository.AnnotationRepo.ReplaceGenerated(item.ID, aset.ID, rows); err != nil {
			return fmt.Errorf("failed to store annotations for item %d: %w", item.ID, err)
		}
		e.setProgress(ctx, job.ID, float64(idx+1)/float64(total),
			fmt.Sprintf("processed %d/%d (%d annotations created)", idx+1, total, created))
	}

	final := fmt.Sprintf("done. created %d annotations", created)
	if skipped > 0 {
		final += fmt.Sprintf(", skipped %d unmatched predictions", skipped)
	}
	return e.markSuccess(ctx, job.ID, final)
}
