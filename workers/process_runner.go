package workers

import (
	"context"
	"sync"
	"time"

	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/services"
)

// Run states reported by ProcessRunner.
const (
	StateIdle    = "idle"
	StateQueued  = "queued"
	StateRunning = "running"
)

// Event types sent to the notify callback.
const (
	EventStarted  = "process.started"
	EventProgress = "process.progress"
	EventFinished = "process.finished"
	EventFailed   = "process.failed"
)

// BatchProcessor runs one recognition batch.
type BatchProcessor interface {
	ProcessImages(ctx context.Context, opts services.ProcessOptions) (services.RunResult, error)
}

// Event describes a change in the background run.
type Event struct {
	Type     string              `json:"type"`
	Reason   string              `json:"reason,omitempty"`
	Progress *services.Progress  `json:"progress,omitempty"`
	Result   *services.RunResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// RunStatus is a snapshot of the runner.
type RunStatus struct {
	State      string             `json:"state"`
	Pending    bool               `json:"pending"`
	StartedAt  int64              `json:"started_at,omitempty"`
	FinishedAt int64              `json:"finished_at,omitempty"`
	Progress   services.Progress  `json:"progress"`
	LastResult services.RunResult `json:"last_result"`
	LastError  string             `json:"last_error,omitempty"`
	Runs       int                `json:"runs"`
}

type ProcessJob struct {
	Reason string
}

// ProcessRunner executes batches on a single background worker. At most one
// batch runs at a time and at most one more waits behind it.
type ProcessRunner struct {
	JobQueue chan ProcessJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Mutex    sync.Mutex

	processor BatchProcessor
	notify    func(Event)
	log       *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once

	pending bool
	status  RunStatus
}

// NewProcessRunner starts the worker goroutine. notify may be nil.
func NewProcessRunner(processor BatchProcessor, notify func(Event), log *logger.Logger) *ProcessRunner {
	if log == nil {
		log = logger.Nop()
	}
	if notify == nil {
		notify = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &ProcessRunner{
		JobQueue:  make(chan ProcessJob, 1),
		StopChan:  make(chan struct{}),
		processor: processor,
		notify:    notify,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		status:    RunStatus{State: StateIdle},
	}
	r.Wg.Add(1)
	go r.worker()
	log.Info("workers: process runner started")
	return r
}

// Enqueue schedules a batch. It returns false when one is already waiting,
// in which case the waiting batch will pick up any new images anyway.
func (r *ProcessRunner) Enqueue(reason string) bool {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()

	select {
	case <-r.StopChan:
		return false
	default:
	}
	if r.pending {
		return false
	}

	select {
	case r.JobQueue <- ProcessJob{Reason: reason}:
		r.pending = true
		if r.status.State == StateIdle {
			r.status.State = StateQueued
		}
		r.status.Pending = true
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the runner state.
func (r *ProcessRunner) Status() RunStatus {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()
	return r.status
}

// Stop cancels the running batch between images and waits for the worker to exit.
func (r *ProcessRunner) Stop() {
	r.stopOnce.Do(func() {
		r.Mutex.Lock()
		close(r.StopChan)
		r.Mutex.Unlock()
		r.cancel()
		r.Wg.Wait()
		r.log.Info("workers: process runner stopped")
	})
}

func (r *ProcessRunner) worker() {
	defer r.Wg.Done()
	for {
		select {
		case job := <-r.JobQueue:
			r.run(job)
		case <-r.StopChan:
			return
		}
	}
}

func (r *ProcessRunner) run(job ProcessJob) {
	r.Mutex.Lock()
	r.pending = false
	r.status.Pending = false
	r.status.State = StateRunning
	r.status.StartedAt = time.Now().Unix()
	r.status.Progress = services.Progress{}
	r.Mutex.Unlock()

	r.log.Info("workers: batch started", "reason", job.Reason)
	r.notify(Event{Type: EventStarted, Reason: job.Reason})

	result, err := r.processor.ProcessImages(r.ctx, services.ProcessOptions{
		OnYield: func(p services.Progress) {
			r.Mutex.Lock()
			r.status.Progress = p
			r.Mutex.Unlock()
			r.notify(Event{Type: EventProgress, Reason: job.Reason, Progress: &p})
		},
	})

	r.Mutex.Lock()
	r.status.FinishedAt = time.Now().Unix()
	r.status.LastResult = result
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	r.status.Runs++
	if r.pending {
		r.status.State = StateQueued
	} else {
		r.status.State = StateIdle
	}
	r.Mutex.Unlock()

	if err != nil {
		r.log.Error("workers: batch failed", "reason", job.Reason, "processed", result.Processed, "error", err)
		r.notify(Event{Type: EventFailed, Reason: job.Reason, Result: &result, Error: err.Error()})
		return
	}
	r.log.Info("workers: batch finished", "reason", job.Reason, "processed", result.Processed, "detected", result.Detected)
	r.notify(Event{Type: EventFinished, Reason: job.Reason, Result: &result})
}
