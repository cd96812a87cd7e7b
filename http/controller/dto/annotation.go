package dto

// AnnotationIn is one incoming bounding box in PUT /items/:item_id/annotations.
type AnnotationIn struct {
	ClassID    uint                   `json:"class_id" binding:"required"`
	X          float64                `json:"x"`
	Y          float64                `json:"y"`
	W          float64                `json:"w"`
	H          float64                `json:"h"`
	Confidence *float64               `json:"confidence"`
	Approved   bool                   `json:"approved"`
	Attributes map[string]interface{} `json:"attributes"`
}
