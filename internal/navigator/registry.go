package navigator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

// Visitor is one browser: its navigator plus per-screen scratch state.
type Visitor struct {
	ID  string
	Nav *Navigator

	mu          sync.Mutex
	notices     []model.Notice
	wizard      *market.Wizard
	tutorOnline bool
	lastSeen    time.Time
}

// Flash queues a notice for the next render.
func (v *Visitor) Flash(n model.Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, n)
}

// TakeNotices returns and clears queued notices.
func (v *Visitor) TakeNotices() []model.Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.notices
	v.notices = nil
	return out
}

// WithWizard runs f with the visitor's application wizard, creating it on
// first use. Returning true from f discards the wizard.
func (v *Visitor) WithWizard(f func(w *market.Wizard) (done bool)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wizard == nil {
		v.wizard = market.NewWizard()
	}
	if f(v.wizard) {
		v.wizard = nil
	}
}

// WizardState returns a copy of the wizard for rendering.
func (v *Visitor) WizardState() market.Wizard {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wizard == nil {
		return *market.NewWizard()
	}
	w := *v.wizard
	w.Form.Subjects = slices.Clone(w.Form.Subjects)
	return w
}

// TutorOnline reports the tutor desk availability toggle.
func (v *Visitor) TutorOnline() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tutorOnline
}

// ToggleOnline flips availability and returns the new value.
func (v *Visitor) ToggleOnline() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tutorOnline = !v.tutorOnline
	return v.tutorOnline
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visitor) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Registry maps visitor cookies to visitors.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	visitors map[string]*Visitor
}

// NewRegistry creates an empty registry. Every new visitor's navigator
// uses cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// Get returns the visitor for id, or false if unknown.
func (r *Registry) Get(id string) (*Visitor, bool) {
	r.mu.RLock()
	v, ok := r.visitors[id]
	r.mu.RUnlock()
	if ok {
		v.touch(r.now())
	}
	return v, ok
}

// Create registers a fresh visitor with a new id.
func (r *Registry) Create() *Visitor {
	v := &Visitor{
		ID:          uuid.NewString(),
		Nav:         New(r.cfg),
		tutorOnline: true,
		lastSeen:    r.now(),
	}
	r.mu.Lock()
	r.visitors[v.ID] = v
	r.mu.Unlock()
	slog.Debug("visitor created", "visitor_id", v.ID)
	return v
}

// Len is the number of known visitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visitors)
}

// Sweep evicts visitors idle longer than maxIdle and tears down their
// live sessions. It returns how many were evicted.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var evicted []*Visitor

	r.mu.Lock()
	for id, v := range r.visitors {
		if v.idleSince().Before(cutoff) {
			evicted = append(evicted, v)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range evicted {
		v.Nav.Teardown()
	}
	if len(evicted) > 0 {
		slog.Info("evicted idle visitors", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

// Shutdown tears down every live session.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.visitors {
		v.Nav.Teardown()
	}
}
