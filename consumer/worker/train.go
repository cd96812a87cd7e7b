package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"gorm.io/datatypes"
)

// Progress bands for the training pipeline, on the job's 0..1 scale.
const (
	trainProgressExportEnd  = 0.20
	trainProgressTrainStart = 0.22
	trainProgressTrainEnd   = 0.78
	trainProgressPostCheck  = 0.80
	trainProgressBenchEnd   = 0.93
	trainProgressReportEnd  = 0.99
)

const (
	defaultTrainEpochs = 50
	defaultTrainBatch  = 16
	defaultTrainImgsz  = 640
	minTrainBatch      = 2
)

// runTrainYolo fine-tunes a base model on one annotation set: export the
// dataset in YOLO layout, verify the base weights, run the blocking training
// call while a watcher tails results.csv into the job record, then benchmark,
// upload a report and register the produced weights as a new model.
func (e *JobExecutor) runTrainYolo(ctx context.Context, job *entity.Job) error {
	if err := e.setRunning(ctx, job.ID, "preparing training data"); err != nil {
		return err
	}

	datasetID := payloadUint(job.Payload, "dataset_id")
	asetID := payloadUint(job.Payload, "annotation_set_id")
	baseModelID := payloadUint(job.Payload, "base_model_id")
	hp := payloadMap(job.Payload, "hyperparameters")
	epochs := payloadInt(hp, "epochs", defaultTrainEpochs)
	batch := payloadInt(hp, "batch", defaultTrainBatch)
	imgsz := payloadInt(hp, "imgsz", defaultTrainImgsz)

	project, err := e.repository.ProjectRepo.FindByID(job.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found")
	}
	if _, err := e.repository.DatasetRepo.FindInProject(datasetID, job.ProjectID); err != nil {
		return fmt.Errorf("dataset not found")
	}
	aset, err := e.repository.AnnotationSetRepo.FindByID(asetID)
	if err != nil || aset.ProjectID != job.ProjectID {
		return fmt.Errorf("annotation set not found")
	}
	baseModel, err := e.repository.ModelWeightRepo.FindInProject(baseModelID, job.ProjectID)
	if err != nil {
		return fmt.Errorf("base model not found")
	}

	classes, err := e.repository.ProjectRepo.ListClasses(job.ProjectID)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return fmt.Errorf("no label classes defined in project. please add classes first.")
	}
	classNames := make([]string, len(classes))
	for i, c := range classes {
		classNames[i] = c.Name
	}

	baseDir := filepath.Join(e.workDir, "trainings", fmt.Sprintf("job_%d", job.ID))
	dataDir := filepath.Join(baseDir, "data")
	runDir := filepath.Join(baseDir, "runs")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run dir: %w", err)
	}

	// phase 1: dataset export, 0 -> 0.20
	if err := e.exportYoloDataset(ctx, job, datasetID, asetID, classes, dataDir); err != nil {
		return err
	}

	// phase 2: base model check, ~0.20
	baseCheck, err := e.checkModelMetadata(ctx, baseModel.RelPath, project.TaskType, nil)
	if mergeErr := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{"base_model_check": baseCheck}); mergeErr != nil {
		e.logger.WarningWithContextf(ctx, "[Train] Failed to record base model check on job %d: %v", job.ID, mergeErr)
	}
	if err != nil {
		return fmt.Errorf("base model check failed: %w", err)
	}
	e.setProgress(ctx, job.ID, trainProgressExportEnd, "base model verified")

	// phase 3: training, 0.22 -> 0.78, live progress from the watcher
	e.setProgress(ctx, job.ID, trainProgressTrainStart,
		fmt.Sprintf("training (epochs=%d, batch=%d, imgsz=%d)", epochs, batch, imgsz))

	watcher := NewTrainWatcher(e.repository.JobRepo, e.logger, job.ID, filepath.Join(runDir, "results.csv"), epochs)
	watcher.Start()
	// Stop is idempotent; the defer keeps the watcher bounded even when the
	// trainer panics out of this frame
	defer watcher.Stop()
	result, batch, err := e.trainWithRetry(ctx, job, infra.TrainSpec{
		DataDir:        dataDir,
		BaseWeightsKey: baseModel.RelPath,
		RunDir:         runDir,
		Epochs:         epochs,
		Batch:          batch,
		ImageSize:      imgsz,
	})
	watcher.Stop()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(result.WeightsPath); statErr != nil {
		return fmt.Errorf("trained weights missing at %s: %w", result.WeightsPath, statErr)
	}

	// phase 4: trained model check, ~0.80
	weightsKey := fmt.Sprintf("weights/project_%d/job_%d_best.pt", job.ProjectID, job.ID)
	if err := e.store.UploadFile(ctx, result.WeightsPath, weightsKey); err != nil {
		return fmt.Errorf("failed to upload trained weights: %w", err)
	}
	trainedCheck, err := e.checkModelMetadata(ctx, weightsKey, project.TaskType, classNames)
	if mergeErr := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{"trained_model_check": trainedCheck}); mergeErr != nil {
		e.logger.WarningWithContextf(ctx, "[Train] Failed to record trained model check on job %d: %v", job.ID, mergeErr)
	}
	if err != nil {
		return fmt.Errorf("trained model check failed: %w", err)
	}
	e.setProgress(ctx, job.ID, trainProgressPostCheck, "trained model verified")

	// phase 5: benchmark on val split, 0.82 -> 0.93
	metrics, err := e.trainer.Benchmark(ctx, result.WeightsPath, dataDir, entity.SplitVal)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}
	if err := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{"bench_metrics": metrics}); err != nil {
		e.logger.WarningWithContextf(ctx, "[Train] Failed to record benchmark metrics on job %d: %v", job.ID, err)
	}
	e.setProgress(ctx, job.ID, trainProgressBenchEnd, "benchmark complete")

	// phase 6: report, 0.93 -> 0.99
	reportKey, err := e.uploadBenchmarkReport(ctx, job, baseDir, baseModel.Name, epochs, batch, imgsz, metrics)
	if err != nil {
		return err
	}
	if err := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{"report_key": reportKey}); err != nil {
		e.logger.WarningWithContextf(ctx, "[Train] Failed to record report key on job %d: %v", job.ID, err)
	}
	e.setProgress(ctx, job.ID, trainProgressReportEnd, "report uploaded")

	// phase 7: persist the model record
	classNamesByIndex := datatypes.JSONMap{}
	for i, name := range classNames {
		classNamesByIndex[fmt.Sprintf("%d", i)] = name
	}
	trained := &entity.ModelWeight{
		ProjectID:  job.ProjectID,
		Name:       fmt.Sprintf("%s_ft_job%d", baseModel.Name, job.ID),
		Framework:  "ultralytics",
		RelPath:    weightsKey,
		ClassNames: classNamesByIndex,
		Meta: datatypes.JSONMap{
			"job_id":  job.ID,
			"epochs":  epochs,
			"batch":   batch,
			"imgsz":   imgsz,
			"metrics": metrics,
		},
	}
	if err := e.repository.ModelWeightRepo.Create(trained); err != nil {
		return fmt.Errorf("failed to register trained model: %w", err)
	}
	if err := e.repository.JobRepo.MergePayload(ctx, job.ID, map[string]interface{}{
		"trained_model_id":   trained.ID,
		"trained_model_name": trained.Name,
	}); err != nil {
		e.logger.WarningWithContextf(ctx, "[Train] Failed to record trained model on job %d: %v", job.ID, err)
	}

	return e.markSuccess(ctx, job.ID, fmt.Sprintf("training complete. model '%s' created", trained.Name))
}

// trainWithRetry halves the batch size on out-of-memory failures until the
// run succeeds or the batch hits the floor. Any other error is terminal.
func (e *JobExecutor) trainWithRetry(ctx context.Context, job *entity.Job, spec infra.TrainSpec) (*infra.TrainResult, int, error) {
	for {
		result, err := e.trainer.Train(ctx, spec)
		if err == nil {
			return result, spec.Batch, nil
		}
		if !errors.Is(err, infra.ErrTrainerOutOfMemory) || spec.Batch <= minTrainBatch {
			return nil, spec.Batch, err
		}
		spec.Batch = spec.Batch / 2
		if spec.Batch < minTrainBatch {
			spec.Batch = minTrainBatch
		}
		e.logger.WarningWithContextf(ctx, "[Train] Job %d hit trainer OOM, retrying with batch %d", job.ID, spec.Batch)
		e.setProgress(ctx, job.ID, trainProgressTrainStart,
			fmt.Sprintf("out of memory, retrying with batch %d", spec.Batch))
	}
}

// exportYoloDataset lays the dataset out for ultralytics: images/<split>/,
// labels/<split>/<stem>.txt with normalized cx cy w h rows, and a data.yaml
// naming the class vocabulary in display order.
func (e *JobExecutor) exportYoloDataset(ctx context.Context, job *entity.Job, datasetID, asetID uint, classes []entity.LabelClass, dataDir string) error {
	items, err := e.repository.DatasetRepo.ListItems(datasetID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("dataset has no items")
	}

	for _, split := range []string{entity.SplitTrain, entity.SplitVal, entity.SplitTest} {
		if err := os.MkdirAll(filepath.Join(dataDir, "images", split), 0o755); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(dataDir, "labels", split), 0o755); err != nil {
			return err
		}
	}

	classIDToYolo := make(map[uint]int, len(classes))
	names := make([]string, len(classes))
	for i, c := range classes {
		classIDToYolo[c.ID] = i
		names[i] = c.Name
	}

	total := len(items)
	for idx, item := range items {
		split := item.Split
		if split == "" {
			split = entity.SplitTrain
		}

		imgDst := filepath.Join(dataDir, "images", split, item.FileName)
		if err := e.store.FetchToFile(ctx, item.RelPath, imgDst); err != nil {
			return fmt.Errorf("failed to fetch %s: %w", item.RelPath, err)
		}

		annotations, err := e.repository.AnnotationRepo.ListForItem(item.ID, asetID)
		if err != nil {
			return err
		}
		lines := yoloLabelLines(annotations, classIDToYolo, item.Width, item.Height)

		stem := strings.TrimSuffix(item.FileName, filepath.Ext(item.FileName))
		lblDst := filepath.Join(dataDir, "labels", split, stem+".txt")
		content := strings.Join(lines, "\n")
		if len(lines) > 0 {
			content += "\n"
		}
		if err := os.WriteFile(lblDst, []byte(content), 0o644); err != nil {
			return err
		}

		e.setProgress(ctx, job.ID, trainProgressExportEnd*float64(idx+1)/float64(total),
			fmt.Sprintf("exporting dataset %d/%d", idx+1, total))
	}

	namesJSON, err := json.Marshal(names)
	if err != nil {
		return err
	}
	dataYaml := strings.Join([]string{
		"path: .",
		"train: images/train",
		"val: images/val",
		"test: images/test",
		fmt.Sprintf("names: %s", namesJSON),
		"",
	}, "\n")
	return os.WriteFile(filepath.Join(dataDir, "data.yaml"), []byte(dataYaml), 0o644)
}

// yoloLabelLines converts top-left xywh pixel boxes into normalized
// center-based rows, clamping each box to the image first.
func yoloLabelLines(annotations []entity.Annotation, classIDToYolo map[uint]int, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	wImg := float64(width)
	hImg := float64(height)

	lines := make([]string, 0, len(annotations))
	for _, a := range annotations {
		yoloID, ok := classIDToYolo[a.ClassID]
		if !ok {
			continue
		}
		x := clamp(a.X, 0, wImg-1)
		y := clamp(a.Y, 0, hImg-1)
		w := clamp(a.W, 0, wImg-x)
		h := clamp(a.H, 0, hImg-y)

		xc := (x + w/2.0) / wImg
		yc := (y + h/2.0) / hImg
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", yoloID, xc, yc, w/wImg, h/hImg))
	}
	return lines
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// checkModelMetadata verifies a weights object against the project's task
// type and, when expectedClasses is non-nil, its exact ordered vocabulary.
// It returns a JSON-friendly report either way; the error is non-nil when
// the check should block the pipeline.
func (e *JobExecutor) checkModelMetadata(ctx context.Context, weightsKey, taskType string, expectedClasses []string) (map[string]interface{}, error) {
	expectedTask := normalizeTask(taskType)
	report := map[string]interface{}{
		"ok":            false,
		"checked_at":    time.Now().UTC().Format(time.RFC3339),
		"path":          weightsKey,
		"expected_task": expectedTask,
	}

	meta, err := e.inference.ModelMetadata(ctx, weightsKey)
	if err != nil {
		report["error"] = err.Error()
		report["summary"] = "failed to load model for metadata check"
		return report, err
	}

	actualTask := normalizeTask(meta.Task)
	actualNames := orderedClassNames(meta.ClassNames)
	report["task"] = actualTask
	report["class_names"] = actualNames

	if actualTask != expectedTask {
		report["summary"] = fmt.Sprintf("task mismatch (expected %s got %s)", expectedTask, actualTask)
		return report, fmt.Errorf("task mismatch (expected %s got %s)", expectedTask, actualTask)
	}

	if expectedClasses != nil {
		if !sameOrderedClasses(expectedClasses, actualNames) {
			report["expected_classes"] = expectedClasses
			report["summary"] = fmt.Sprintf("class mismatch (expected %d got %d)", len(expectedClasses), len(actualNames))
			return report, fmt.Errorf("class vocabulary mismatch (expected %v got %v)",
				headStrings(expectedClasses, 5), headStrings(actualNames, 5))
		}
	}

	report["ok"] = true
	report["summary"] = "model metadata looks compatible"
	return report, nil
}

func sameOrderedClasses(expected, actual []string) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !strings.EqualFold(expected[i], actual[i]) {
			return false
		}
	}
	return true
}

var taskAliases = map[string]string{
	"detection":      "detect",
	"detect":         "detect",
	"segmentation":   "segment",
	"segment":        "segment",
	"classification": "classify",
	"classify":       "classify",
	"pose":           "pose",
	"obb":            "obb",
}

func normalizeTask(t string) string {
	s := strings.ToLower(strings.TrimSpace(t))
	if norm, ok := taskAliases[s]; ok {
		return norm
	}
	return s
}

// uploadBenchmarkReport renders the run summary as markdown and stores it
// next to the job's other artifacts in object storage.
func (e *JobExecutor) uploadBenchmarkReport(ctx context.Context, job *entity.Job, baseDir, baseModelName string, epochs, batch, imgsz int, metrics map[string]float64) (string, error) {
	artifactsDir := filepath.Join(baseDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return "", err
	}

	metricNames := make([]string, 0, len(metrics))
	for name := range metrics {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)

	var b strings.Builder
	fmt.Fprintf(&b, "# Training report: job %d\n\n", job.ID)
	fmt.Fprintf(&b, "- base model: %s\n", baseModelName)
	fmt.Fprintf(&b, "- epochs: %d\n", epochs)
	fmt.Fprintf(&b, "- batch: %d\n", batch)
	fmt.Fprintf(&b, "- image size: %d\n", imgsz)
	fmt.Fprintf(&b, "- finished at: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("## Benchmark (val split)\n\n")
	b.WriteString("| metric | value |\n|---|---|\n")
	for _, name := range metricNames {
		fmt.Fprintf(&b, "| %s | %.4f |\n", name, metrics[name])
	}

	reportPath := filepath.Join(artifactsDir, "benchmark_report.md")
	if err := os.WriteFile(reportPath, []byte(b.String()), 0o644); err != nil {
		return "", err
	}

	reportKey := fmt.Sprintf("trainings/job_%d/benchmark_report.md", job.ID)
	if err := e.store.UploadFile(ctx, reportPath, reportKey); err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	return reportKey, nil
}
