// Package navigator keeps, per visitor, who is logged in, which page is
// shown and the live session in progress.
package navigator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/model"
)

var (
	ErrInvalidRole     = errors.New("invalid role")
	ErrPageNotAllowed  = errors.New("page not allowed for this role")
	ErrNotStudent      = errors.New("only students can start a session")
	ErrNoActiveSession = errors.New("no active session")
)

// reachable lists the pages each role may navigate to directly. The live
// session page is only entered through StartSession.
var reachable = map[model.Role][]model.Page{
	model.RoleGuest:   {model.PageLanding, model.PageTutorApplication},
	model.RoleStudent: {model.PageStudentDashboard, model.PageBooking, model.PageForum},
	model.RoleTutor:   {model.PageTutorDashboard, model.PageForum},
	model.RoleAdmin:   {model.PageAdminDashboard},
}

// CanReach reports whether role may navigate to page.
func CanReach(role model.Role, page model.Page) bool {
	return slices.Contains(reachable[role], page)
}

// ActorSource resolves the mock identity behind a role.
type ActorSource interface {
	ActorByRole(role model.Role) (*model.Actor, error)
}

// Config wires a Navigator to the rest of the application.
type Config struct {
	Actors ActorSource
	// Lifecycle is the template for every live session; OnClosed is set by
	// the navigator.
	Lifecycle live.Options
	// OnSessionClosed runs after a rated session has returned the actor to
	// their dashboard.
	OnSessionClosed func(actor model.Actor, desc model.SessionDescriptor, snap live.Snapshot)
}

// Navigator is the root view state: (actor, page, live session).
type Navigator struct {
	cfg Config

	mu      sync.Mutex
	actor   *model.Actor
	page    model.Page
	session *live.Session
}

// New returns a navigator in the initial (none, landing, none) state.
func New(cfg Config) *Navigator {
	return &Navigator{cfg: cfg, page: model.PageLanding}
}

// Actor returns a copy of the logged-in actor, or nil.
func (n *Navigator) Actor() *model.Actor {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.actor == nil {
		return nil
	}
	a := *n.actor
	return &a
}

// Role is the current role, RoleGuest when nobody is logged in.
func (n *Navigator) Role() model.Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.roleLocked()
}

// Page is the page to render.
func (n *Navigator) Page() model.Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.page
}

// Session is the live session, or nil.
func (n *Navigator) Session() *live.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

// Login establishes the mock actor for role and shows their dashboard.
func (n *Navigator) Login(role model.Role) error {
	if role == model.RoleGuest {
		return ErrInvalidRole
	}
	if _, ok := reachable[role]; !ok {
		return ErrInvalidRole
	}
	actor, err := n.cfg.Actors.ActorByRole(role)
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}
	if actor == nil {
		return ErrInvalidRole
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropSessionLocked()
	n.actor = actor
	n.page = role.Dashboard()
	slog.Info("actor logged in", "actor_id", actor.ID, "role", role)
	return nil
}

// Logout tears down any live session and resets to the initial state.
func (n *Navigator) Logout() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropSessionLocked()
	if n.actor != nil {
		slog.Info("actor logged out", "actor_id", n.actor.ID)
	}
	n.actor = nil
	n.page = model.PageLanding
}

// Navigate switches page. Leaving the live session page tears it down.
func (n *Navigator) Navigate(page model.Page) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigateLocked(page)
}

// Back returns from a sub-page to the role's home page.
func (n *Navigator) Back() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigateLocked(n.roleLocked().Dashboard())
}

func (n *Navigator) navigateLocked(page model.Page) error {
	if page == n.page {
		return nil
	}
	if !CanReach(n.roleLocked(), page) {
		return ErrPageNotAllowed
	}
	n.dropSessionLocked()
	n.page = page
	return nil
}

// StartSession begins a live session for the logged-in student.
func (n *Navigator) StartSession(desc model.SessionDescriptor) (*live.Session, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.roleLocked() != model.RoleStudent {
		return nil, ErrNotStudent
	}
	n.dropSessionLocked()

	opts := n.cfg.Lifecycle
	opts.OnClosed = n.sessionClosed
	sess, err := live.Start(desc, opts)
	if err != nil {
		return nil, err
	}
	n.session = sess
	n.page = model.PageInstantSession
	return sess, nil
}

// EndSession drops the live session and returns to the dashboard.
func (n *Navigator) EndSession() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropSessionLocked()
	n.page = n.roleLocked().Dashboard()
}

// Teardown stops any live session without changing page. Used when the
// visitor is evicted.
func (n *Navigator) Teardown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session != nil {
		n.session.Teardown()
	}
}

// sessionClosed is the lifecycle's OnClosed hook.
func (n *Navigator) sessionClosed(snap live.Snapshot) {
	n.mu.Lock()
	if n.session == nil || n.session.ID() != snap.ID {
		n.mu.Unlock()
		return
	}
	desc := n.session.Descriptor()
	n.session = nil
	n.page = n.roleLocked().Dashboard()
	var actor model.Actor
	if n.actor != nil {
		actor = *n.actor
	}
	n.mu.Unlock()

	if n.cfg.OnSessionClosed != nil {
		n.cfg.OnSessionClosed(actor, desc, snap)
	}
}

func (n *Navigator) dropSessionLocked() {
	if n.session != nil {
		n.session.Teardown()
		n.session = nil
	}
}

func (n *Navigator) roleLocked() model.Role {
	if n.actor == nil {
		return model.RoleGuest
	}
	return n.actor.Role
}
