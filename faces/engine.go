package faces

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/camden-git/facesys/logger"
)

// EngineState is the lifecycle of the model pair.
type EngineState int

const (
	EngineUninitialized EngineState = iota
	EngineReady
	EngineFailed
)

func (s EngineState) String() string {
	switch s {
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Loader builds the detector and embedder. It is called lazily and again after a failure.
type Loader func() (Detector, Embedder, error)

// Engine owns the models and loads them on first use.
type Engine struct {
	mu        sync.Mutex
	loader    Loader
	state     EngineState
	lastErr   error
	detector  Detector
	embedder  Embedder
	extractor *Extractor
	log       *logger.Logger
}

func NewEngine(loader Loader, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{loader: loader, log: log}
}

// EnsureReady loads the models if needed and returns the extractor over them.
// A failed load leaves the engine in EngineFailed; the next call retries.
func (e *Engine) EnsureReady() (*Extractor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == EngineReady {
		return e.extractor, nil
	}
	if e.loader == nil {
		e.state = EngineFailed
		e.lastErr = fmt.Errorf("%w: no model loader configured", ErrEngineNotReady)
		return nil, e.lastErr
	}

	e.log.Info("engine: loading face models")
	detector, embedder, err := e.loader()
	if err != nil {
		e.state = EngineFailed
		e.lastErr = fmt.Errorf("%w: %w", ErrEngineNotReady, err)
		e.log.Error("engine: failed to load face models", "error", err)
		return nil, e.lastErr
	}

	e.detector = detector
	e.embedder = embedder
	e.extractor = NewExtractor(detector, embedder, e.log)
	e.state = EngineReady
	e.lastErr = nil
	e.log.Info("engine: face models ready")
	return e.extractor, nil
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err is the error of the last failed load, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Close releases the models and returns the engine to EngineUninitialized.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if c, ok := e.detector.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := e.embedder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	e.detector, e.embedder, e.extractor = nil, nil, nil
	e.state = EngineUninitialized
	return errors.Join(errs...)
}
