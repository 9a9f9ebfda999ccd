package cron

import (
	"context"
	"time"
)

// Job is one scheduled task. Run should be safe to repeat.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Cadenced jobs run at most once per Every instead of on every cycle.
type Cadenced interface {
	Every() time.Duration
}

type scheduled struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs in registration order, keyed by name. It is not safe
// for concurrent use; the service drives it from a single loop.
type Registry struct {
	entries []*scheduled
	byName  map[string]*scheduled
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{byName: make(map[string]*scheduled, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register ignores nil jobs and names already taken, and reports whether the
// job was added.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	name := job.Name()
	if _, taken := r.byName[name]; taken {
		return false
	}
	entry := &scheduled{job: job}
	if c, ok := job.(Cadenced); ok {
		entry.every = c.Every()
	}
	r.byName[name] = entry
	r.entries = append(r.entries, entry)
	return true
}

func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.job)
	}
	return out
}

// Due lists the jobs whose cadence has elapsed at now.
func (r *Registry) Due(now time.Time) []Job {
	var out []Job
	for _, entry := range r.entries {
		if entry.every <= 0 || entry.lastRun.IsZero() || !now.Before(entry.lastRun.Add(entry.every)) {
			out = append(out, entry.job)
		}
	}
	return out
}

// MarkRun records an attempt. Failed runs are marked too so a broken job
// keeps its cadence instead of retrying every cycle.
func (r *Registry) MarkRun(name string, at time.Time) {
	if entry, ok := r.byName[name]; ok {
		entry.lastRun = at
	}
}
