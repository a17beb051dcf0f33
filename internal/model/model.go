package model

import (
	"sync"
	"time"

	"github.com/ekisa-team/anubad/internal/config"
)

// Status is the current loading status of a model.
type Status string

const (
	// StatusUnloaded indicates that the model is not loaded.
	StatusUnloaded Status = "unloaded"

	// StatusLoading indicates that the model is being loaded.
	StatusLoading Status = "loading"

	// StatusLoaded indicates that the model is loaded.
	StatusLoaded Status = "loaded"

	// StatusFailed indicates that the model failed to load.
	StatusFailed Status = "failed"

	// StatusUnloading indicates that the model is being unloaded.
	StatusUnloading Status = "unloading"
)

// Instance represents a registered model profile.
type Instance struct {
	Config   *config.ModelConfig
	loadedAt *time.Time
	err      error
	ID       string
	Path     string
	status   Status
	mu       sync.RWMutex
}

// Snapshot is a point in time, serializable view of an Instance.
type Snapshot struct {
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	ID       string     `json:"id"`
	Backend  string     `json:"backend"`
	Status   Status     `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// NewInstance creates a new model instance.
func NewInstance(cfg *config.ModelConfig, id, path string) *Instance {
	return &Instance{
		ID:     id,
		Path:   path,
		Config: cfg,
		status: StatusUnloaded,
	}
}

// Status returns the current status.
func (mi *Instance) Status() Status {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	return mi.status
}

// Err returns the error that made the model fail, if any.
func (mi *Instance) Err() error {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	return mi.err
}

// SetStatus sets the status of the model instance.
func (mi *Instance) SetStatus(status Status) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.status = status
	if status == StatusLoaded {
		now := time.Now()
		mi.loadedAt = &now
		mi.err = nil
	}
}

// SetError marks the instance as failed with err.
func (mi *Instance) SetError(err error) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.status = StatusFailed
	mi.err = err
}

// TryBeginLoad moves an unloaded instance to loading and reports whether
// the caller owns the load. Loaded, loading and failed instances are left
// alone so a model is loaded at most once.
func (mi *Instance) TryBeginLoad() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	if mi.status != StatusUnloaded {
		return false
	}
	mi.status = StatusLoading
	return true
}

// Snapshot returns a copy of the instance state.
func (mi *Instance) Snapshot() Snapshot {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	s := Snapshot{
		ID:       mi.ID,
		Status:   mi.status,
		LoadedAt: mi.loadedAt,
	}
	if mi.Config != nil {
		s.Backend = mi.Config.Backend
	}
	if mi.err != nil {
		s.Error = mi.err.Error()
	}
	return s
}
