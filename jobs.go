package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdf-translator/internal/pipeline"
)

const (
	statusPending    = "pending"
	statusInProgress = "in_progress"
	statusCompleted  = "completed"
	statusFailed     = "failed"
	statusCancelled  = "cancelled"
)

// Job represents a translation job
type Job struct {
	ID         string
	FileName   string
	InputPath  string
	OutputDir  string
	SourceLang string
	TargetLang string
	UseOCR     bool
	Status     string // "pending", "in_progress", "completed", "failed", "cancelled"
	Error      string
	OutputPath string
	Mode       pipeline.Mode
	Result     *pipeline.Result
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PagesDone  int // Number of pages translated
	TotalPages int // Total number of pages in the document
}

// JobStore manages jobs, their statuses and the queue feeding the workers
type JobStore struct {
	sync.RWMutex
	jobs  map[string]*Job
	queue chan *Job

	cancellersMu sync.Mutex
	cancellers   map[string]context.CancelFunc
}

// NewJobStore creates a store whose queue holds up to capacity waiting jobs
func NewJobStore(capacity int) *JobStore {
	return &JobStore{
		jobs:       make(map[string]*Job),
		queue:      make(chan *Job, capacity),
		cancellers: make(map[string]context.CancelFunc),
	}
}

func generateJobID() string {
	return uuid.New().String()
}

func (store *JobStore) addJob(job *Job) {
	store.Lock()
	defer store.Unlock()
	job.PagesDone = 0
	store.jobs[job.ID] = job
	log.WithFields(logrus.Fields{
		"job_id": job.ID,
		"file":   job.FileName,
	}).Info("Job added")
}

// enqueue hands the job to the workers; it fails when the queue is full
func (store *JobStore) enqueue(job *Job) bool {
	select {
	case store.queue <- job:
		return true
	default:
		return false
	}
}

// getJob returns a copy of the job so callers never race with the workers
func (store *JobStore) getJob(jobID string) (Job, bool) {
	store.RLock()
	defer store.RUnlock()
	job, exists := store.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

func (store *JobStore) GetAllJobs() []Job {
	store.RLock()
	defer store.RUnlock()

	jobs := make([]Job, 0, len(store.jobs))
	for _, job := range store.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs
}

func (store *JobStore) updateJobStatus(jobID, status, errMsg string) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.Status = status
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = time.Now()
		log.WithFields(logrus.Fields{
			"job_id": jobID,
			"status": status,
		}).Info("Job status updated")
	}
}

func (store *JobStore) updatePagesDone(jobID string, pagesDone, totalPages int) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.PagesDone = pagesDone
		job.TotalPages = totalPages
		job.UpdatedAt = time.Now()
	}
}

func (store *JobStore) completeJob(jobID string, result *pipeline.Result) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.Status = statusCompleted
		job.Result = result
		job.OutputPath = result.OutputPath
		job.Mode = result.Mode
		job.TotalPages = result.Pages
		job.UpdatedAt = time.Now()
	}
}

// cancelJob cancels a pending or running job. It reports false when the job
// is unknown or already finished.
func (store *JobStore) cancelJob(jobID string) bool {
	store.Lock()
	job, exists := store.jobs[jobID]
	if !exists || (job.Status != statusPending && job.Status != statusInProgress) {
		store.Unlock()
		return false
	}
	if job.Status == statusPending {
		job.Status = statusCancelled
		job.Error = "Job cancelled by user"
		job.UpdatedAt = time.Now()
	}
	store.Unlock()

	store.cancellersMu.Lock()
	cancel, running := store.cancellers[jobID]
	store.cancellersMu.Unlock()
	if running {
		cancel()
	}
	return true
}

// startJob moves a pending job to in progress and registers its canceller.
// It reports false when the job is unknown or was cancelled while queued.
func (store *JobStore) startJob(jobID string, cancel context.CancelFunc) bool {
	store.Lock()
	defer store.Unlock()
	job, exists := store.jobs[jobID]
	if !exists || job.Status != statusPending {
		return false
	}
	job.Status = statusInProgress
	job.UpdatedAt = time.Now()
	store.setCanceller(jobID, cancel)
	log.WithFields(logrus.Fields{
		"job_id": jobID,
		"status": statusInProgress,
	}).Info("Job status updated")
	return true
}

func (store *JobStore) setCanceller(jobID string, cancel context.CancelFunc) {
	store.cancellersMu.Lock()
	defer store.cancellersMu.Unlock()
	if cancel == nil {
		delete(store.cancellers, jobID)
		return
	}
	store.cancellers[jobID] = cancel
}

func startWorkerPool(app *App, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			log.Infof("Worker %d started", workerID)
			for job := range app.Jobs.queue {
				log.Infof("Worker %d processing job: %s", workerID, job.ID)
				processJob(app, job)
			}
		}(i)
	}
}

func processJob(app *App, job *Job) {
	logger := log.WithField("job_id", job.ID)

	jobCtx, cancel := context.WithCancel(context.Background())
	if !app.Jobs.startJob(job.ID, cancel) {
		cancel()
		logger.Info("Skipping cancelled job")
		return
	}
	defer func() {
		cancel()
		app.Jobs.setCanceller(job.ID, nil)
	}()

	result, err := app.Runner.Run(jobCtx, pipeline.Request{
		InputPath:  job.InputPath,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		OutputDir:  job.OutputDir,
		UseOCR:     job.UseOCR,
		Progress: func(done, total int) {
			app.Jobs.updatePagesDone(job.ID, done, total)
		},
	})

	record := TranslationRecord{
		JobID:      job.ID,
		FileName:   job.FileName,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		UseOCR:     job.UseOCR,
	}
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		app.Jobs.updateJobStatus(job.ID, statusCancelled, "Job cancelled by user")
		logger.Info("Job cancelled")
		record.Status = statusCancelled
	case err != nil:
		logger.WithError(err).Error("Translation job failed")
		app.Jobs.updateJobStatus(job.ID, statusFailed, err.Error())
		record.Status = statusFailed
		record.Error = err.Error()
		record.ErrorCode = string(pipeline.CodeOf(err))
	default:
		app.Jobs.completeJob(job.ID, result)
		logger.WithFields(logrus.Fields{
			"mode":   result.Mode,
			"status": result.Status,
		}).Info("Job completed")
		record.Status = statusCompleted
		record.Mode = string(result.Mode)
		record.Outcome = string(result.Status)
		record.Pages = result.Pages
		record.Groups = result.Groups
		record.Overflows = result.Overflows
		record.OutputPath = result.OutputPath
	}

	if app.Database != nil {
		if err := InsertTranslationRecord(app.Database, record); err != nil {
			logger.WithError(err).Error("Failed to store translation history")
		}
	}
}
