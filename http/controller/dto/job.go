package dto

// AutoAnnotateRequest enqueues an auto-annotation run over a dataset.
// Params may carry a class_mapping table of model-class -> project-class.
type AutoAnnotateRequest struct {
	ModelID   uint                   `json:"model_id" binding:"required"`
	DatasetID uint                   `json:"dataset_id" binding:"required"`
	Conf      float64                `json:"conf"`
	IoU       float64                `json:"iou"`
	Params    map[string]interface{} `json:"params"`
}

// TrainYoloRequest enqueues a training run from an annotation set.
type TrainYoloRequest struct {
	DatasetID       uint                   `json:"dataset_id" binding:"required"`
	AnnotationSetID uint                   `json:"annotation_set_id" binding:"required"`
	BaseModelID     uint                   `json:"base_model_id" binding:"required"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
}
