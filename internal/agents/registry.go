package agents

import (
	"sort"
	"sync"
	"time"

	"quorum/pkg/errors"
)

type entry struct {
	worker Worker

	mu     sync.Mutex
	record WorkerRecord
}

// Registry stores workers by name together with their statistics.
// The map is guarded by mu; each record is guarded by its own entry lock so
// dispatches to different workers never contend.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a worker under name with an initial success rate of 1.0.
func (r *Registry) Register(name string, w Worker, tags ...string) error {
	if name == "" {
		return errors.NewValidationError("name", "worker name is required", name)
	}
	if w == nil {
		return errors.NewValidationError("worker", "worker is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "worker %s", name)
	}

	r.entries[name] = &entry{
		worker: w,
		record: WorkerRecord{
			Name:        name,
			Tags:        normalizeTags(tags),
			SuccessRate: 1.0,
		},
	}
	return nil
}

// Unregister removes a worker. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Get returns the worker registered under name.
func (r *Registry) Get(name string) (Worker, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.worker, nil
}

// Has reports whether a worker is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Record returns a copy of one worker's statistics.
func (r *Registry) Record(name string) (WorkerRecord, error) {
	e, err := r.lookup(name)
	if err != nil {
		return WorkerRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyRecord(e.record), nil
}

// Names returns registered worker names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns copies of all records, sorted by name.
func (r *Registry) Snapshot() []WorkerRecord {
	r.mu.RLock()
	list := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e)
	}
	r.mu.RUnlock()

	records := make([]WorkerRecord, 0, len(list))
	for _, e := range list {
		e.mu.Lock()
		records = append(records, copyRecord(e.record))
		e.mu.Unlock()
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrWorkerNotFound, "%s", name)
	}
	return e, nil
}

// recordOutcome applies one dispatch outcome to the worker's statistics.
// The count is incremented first and the running mean uses the new count,
// which keeps the rate inside [0,1] for any outcome sequence.
func (e *entry) recordOutcome(ok bool, at time.Time) WorkerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record.TaskCount++
	n := float64(e.record.TaskCount)

	outcome := 0.0
	if ok {
		outcome = 1.0
	}
	rate := (e.record.SuccessRate*(n-1) + outcome) / n
	e.record.SuccessRate = clampUnit(rate)

	used := at
	e.record.LastUsed = &used

	return copyRecord(e.record)
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func copyRecord(rec WorkerRecord) WorkerRecord {
	cp := rec
	cp.Tags = append([]string(nil), rec.Tags...)
	if rec.LastUsed != nil {
		t := *rec.LastUsed
		cp.LastUsed = &t
	}
	return cp
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
