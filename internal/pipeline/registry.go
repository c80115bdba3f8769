package pipeline

import (
	"sync"

	"github.com/leadforge/leadforge/internal/lead"
)

// Registry holds pipeline jobs for the lifetime of the process so the
// query-by-id surface can serve them. Jobs are never persisted durably; a
// restart empties the registry by design.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]lead.PipelineJob
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]lead.PipelineJob)}
}

// Put stores a snapshot of the job.
func (r *Registry) Put(job lead.PipelineJob) {
	if job.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = snapshot(job)
}

// Get returns the job snapshot, if present.
func (r *Registry) Get(id string) (lead.PipelineJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return lead.PipelineJob{}, false
	}
	return snapshot(job), true
}

func snapshot(job lead.PipelineJob) lead.PipelineJob {
	cp := job
	cp.URLs = append([]string(nil), job.URLs...)
	cp.Results = append([]lead.URLResult(nil), job.Results...)
	return cp
}
