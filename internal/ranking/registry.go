package ranking

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ModelRegistry is the process-wide model cache, keyed by file path. Each
// artifact is loaded exactly once and shared by every ranker pointing at
// the same path; the loaded model is immutable, so reads after the first
// load need no coordination beyond the map lock.
//
// The registry is constructed by the host process and injected into the
// rankers that need it. It lives for the whole process; being memory-only
// it needs no teardown.
type ModelRegistry struct {
	mu     sync.Mutex
	models map[string]Model
	// warned tracks paths that already produced a load warning, so a
	// missing artifact logs once per path instead of once per request.
	warned map[string]bool
	logger *logrus.Logger
}

func NewModelRegistry(logger *logrus.Logger) *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]Model),
		warned: make(map[string]bool),
		logger: logger,
	}
}

// Get returns the cached model for path, loading it on first use.
// A missing or invalid artifact returns (nil, false): the caller degrades
// to fallback scoring rather than failing.
func (r *ModelRegistry) Get(path string) (Model, bool) {
	if path == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if model, ok := r.models[path]; ok {
		return model, true
	}

	if _, err := os.Stat(path); err != nil {
		r.warnOnce(path, "Ranking model artifact not found, using fallback predictions")
		return nil, false
	}

	model, err := LoadModel(path)
	if err != nil {
		if !r.warned[path] {
			r.warned[path] = true
			r.logger.WithError(err).WithField("model_path", path).Warn("Failed to load ranking model, using fallback predictions")
		}
		return nil, false
	}

	r.models[path] = model
	r.logger.WithField("model_path", path).Info("Ranking model loaded")
	return model, true
}

func (r *ModelRegistry) warnOnce(path, message string) {
	if r.warned[path] {
		return
	}
	r.warned[path] = true
	r.logger.WithField("model_path", path).Warn(message)
}
