package worker

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/repository"
)

// trainWatchInterval is a variable so tests can tighten the tick.
var trainWatchInterval = 2 * time.Second

// TrainWatcher tails a run's results.csv while the blocking training call is
// in flight and folds the newest epoch row into the job's progress and
// message. Writes are suppressed until the epoch actually advances, so a
// stalled run produces no update churn.
type TrainWatcher struct {
	jobs        *repository.JobRepository
	logger      *infra.LoggerClient
	jobID       uint
	csvPath     string
	totalEpochs int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	lastEpoch int
}

func NewTrainWatcher(jobs *repository.JobRepository, logger *infra.LoggerClient, jobID uint, csvPath string, totalEpochs int) *TrainWatcher {
	if totalEpochs < 1 {
		totalEpochs = 1
	}
	return &TrainWatcher{
		jobs:        jobs,
		logger:      logger,
		jobID:       jobID,
		csvPath:     csvPath,
		totalEpochs: totalEpochs,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *TrainWatcher) Start() {
	go w.loop()
}

// Stop halts the watcher and waits for the loop to exit, so no progress
// write can race the pipeline's own post-training updates.
func (w *TrainWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *TrainWatcher) loop() {
	defer close(w.done)

	ticker := time.NewTicker(trainWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick(context.Background())
		}
	}
}

func (w *TrainWatcher) tick(ctx context.Context) {
	epoch, ok := latestEpoch(w.csvPath)
	if !ok || epoch <= w.lastEpoch {
		return
	}
	w.lastEpoch = epoch

	frac := float64(epoch) / float64(w.totalEpochs)
	if frac > 1 {
		frac = 1
	}
	progress := trainProgressTrainStart + (trainProgressTrainEnd-trainProgressTrainStart)*frac
	message := fmt.Sprintf("training epoch %d/%d", epoch, w.totalEpochs)

	err := w.jobs.Update(ctx, w.jobID, repository.JobUpdate{Progress: &progress, Message: &message})
	if err != nil {
		w.logger.WarningWithContextf(ctx, "[Train Watcher] Failed to update job %d: %v", w.jobID, err)
	}
}

// latestEpoch reads the epoch column of the newest data row. The file may
// not exist yet or hold only the header while the first epoch runs.
func latestEpoch(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return 0, false
	}

	last := records[len(records)-1]
	if len(last) == 0 {
		return 0, false
	}
	epoch, err := strconv.Atoi(strings.TrimSpace(last[0]))
	if err != nil {
		return 0, false
	}
	return epoch, true
}
