package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/draft"
)

// --- Error Definitions ---
var (
	ErrNoDraft    = errors.New("no draft plan is active")
	ErrNotEditing = errors.New("not in edit mode")
	ErrNotViewing = errors.New("not in view mode")
)

// EditConflictError signals that switching to another plan would silently
// discard an unsaved edit. The caller must prompt the user to
// discard-and-switch or cancel; only an explicit discard clears the draft.
type EditConflictError struct {
	TargetPlanID string
}

func (e *EditConflictError) Error() string {
	return "EDIT_CONFLICT:" + e.TargetPlanID
}

// Name given to a plan saved without one.
const defaultPlanName = "Unnamed Plan"

// --- Routes ---

// Client-side navigation targets the state machine emits. The HTTP layer
// returns them to the front-end; the machine itself only records them.
const (
	RouteHome        = "/"
	RouteNewPlanEdit = "/plan/edit"
)

// PlanRoute is the normal/view route for a plan.
func PlanRoute(id string) string { return "/plan/" + id }

// PlanEditRoute is the edit route for an existing plan.
func PlanEditRoute(id string) string { return "/plan/" + id + "/edit" }

// IsEditRoute reports whether route addresses the editor.
func IsEditRoute(route string) bool {
	return route == RouteNewPlanEdit || strings.HasSuffix(route, "/edit")
}

// Navigator receives a route target only after a transition's state has
// fully settled, so navigation ordering is an explicit contract rather than
// a scheduling accident.
type Navigator interface {
	NavigateTo(route string)
	CurrentRoute() string
}

// RouteTracker is the default Navigator: it records where the client is.
// The front-end reports its own navigations through SetCurrent.
type RouteTracker struct {
	mu    sync.Mutex
	route string
}

func NewRouteTracker() *RouteTracker {
	return &RouteTracker{route: RouteHome}
}

func (t *RouteTracker) NavigateTo(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = route
}

// SetCurrent records a navigation the client performed itself.
func (t *RouteTracker) SetCurrent(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = route
}

func (t *RouteTracker) CurrentRoute() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.route
}

// PlanModeService is the plan mode state machine. It is the sole writer of
// the PlanModeState and mirrors every write into the draft store so an
// in-progress draft survives a restart. Transitions are serialized by a
// mutex; a second transition cannot interleave with an in-flight save.
type PlanModeService struct {
	drafts draft.Store
	cache  *PlanCacheService
	nav    Navigator

	mu    sync.Mutex
	state domain.PlanModeState
}

// NewPlanModeService creates a state machine starting in normal mode. Call
// Rehydrate after the metadata cache's first fetch to restore a persisted
// draft.
func NewPlanModeService(drafts draft.Store, cache *PlanCacheService, nav Navigator) *PlanModeService {
	return &PlanModeService{
		drafts: drafts,
		cache:  cache,
		nav:    nav,
		state:  domain.NormalState(),
	}
}

// State returns a copy of the current state.
func (s *PlanModeService) State() domain.PlanModeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// checkConflictLocked applies the conflict rule: loading or editing plan B
// while an unsaved edit on a different plan A is held must surface a
// distinguishable signal instead of silently discarding A's draft.
func (s *PlanModeService) checkConflictLocked(targetID string) error {
	if s.state.Mode == domain.ModeEdit && s.state.HasUnsavedChanges && targetID != s.state.OriginalPlanID {
		return &EditConflictError{TargetPlanID: targetID}
	}
	return nil
}

// mirrorLocked writes the full state into the draft store.
func (s *PlanModeService) mirrorLocked() {
	if s.state.IsNormal() {
		s.drafts.ClearAll()
		return
	}
	s.drafts.SetMode(string(s.state.Mode))
	s.drafts.SetDraftPlan(s.state.DraftPlan)
	s.drafts.SetOriginalID(s.state.OriginalPlanID)
}

// EnterEditMode starts editing a plan. An empty originalID means a
// brand-new, never-persisted plan. Returns the route the client should
// navigate to.
func (s *PlanModeService) EnterEditMode(plan *domain.TrainingPlanDocument, originalID string) (string, error) {
	if plan == nil {
		return "", ErrNoDraft
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConflictLocked(originalID); err != nil {
		return "", err
	}

	s.state = domain.EditingState(plan, originalID)
	s.mirrorLocked()

	route := RouteNewPlanEdit
	if originalID != "" {
		route = PlanEditRoute(originalID)
	}
	s.nav.NavigateTo(route)
	return route, nil
}

// EnterViewMode displays a non-owned plan read-only. No forced navigation:
// the caller is already on the target route.
func (s *PlanModeService) EnterViewMode(plan *domain.TrainingPlanDocument, planID string) error {
	if plan == nil {
		return ErrNoDraft
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConflictLocked(planID); err != nil {
		return err
	}

	s.state = domain.ViewingState(plan, planID)
	s.mirrorLocked()
	return nil
}

// UpdateDraftPlan replaces the draft and marks it unsaved. Only meaningful
// outside normal mode.
func (s *PlanModeService) UpdateDraftPlan(updated *domain.TrainingPlanDocument) error {
	if updated == nil {
		return ErrNoDraft
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsNormal() {
		return ErrNoDraft
	}
	s.state.DraftPlan = updated
	s.state.HasUnsavedChanges = true
	s.mirrorLocked()
	return nil
}

// SaveDraftPlan persists the edit-mode draft: update when the draft came
// from an existing plan, insert otherwise. On success the saved plan becomes
// the active plan, all draft state is cleared, and the plan's route is
// returned. On failure the state is left untouched so the user can retry.
func (s *PlanModeService) SaveDraftPlan(ctx context.Context) (id string, route string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode != domain.ModeEdit {
		return "", "", ErrNotEditing
	}

	doc := s.state.DraftPlan
	normalizeMetadata(doc)
	if err := domain.ValidateReferences(doc); err != nil {
		return "", "", err
	}

	if s.state.OriginalPlanID != "" {
		id = s.state.OriginalPlanID
		if err := s.cache.UpdatePlan(ctx, id, doc); err != nil {
			return "", "", err
		}
		s.cache.SetActivePlan(doc, id)
	} else {
		newID, err := s.cache.CreatePlan(ctx, doc)
		if err != nil {
			return "", "", err
		}
		id = newID
	}

	s.state = domain.NormalState()
	s.drafts.ClearAll()

	route = PlanRoute(id)
	s.nav.NavigateTo(route)
	return id, route, nil
}

// SaveViewedPlanToMyPlans copies the viewed plan into the user's own plans.
// Always an insert: the source plan is never mutated.
func (s *PlanModeService) SaveViewedPlanToMyPlans(ctx context.Context) (id string, route string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode != domain.ModeView {
		return "", "", ErrNotViewing
	}

	doc := s.state.DraftPlan
	normalizeMetadata(doc)
	if err := domain.ValidateReferences(doc); err != nil {
		return "", "", err
	}

	id, err = s.cache.CreatePlan(ctx, doc)
	if err != nil {
		return "", "", err
	}

	s.state = domain.NormalState()
	s.drafts.ClearAll()

	route = PlanRoute(id)
	s.nav.NavigateTo(route)
	return id, route, nil
}

// DiscardDraftPlan drops the draft and returns to where the draft came
// from: the original plan's route, or home for a never-persisted plan.
func (s *PlanModeService) DiscardDraftPlan() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	originalID := s.state.OriginalPlanID
	s.state = domain.NormalState()
	s.drafts.ClearAll()

	route := RouteHome
	if originalID != "" {
		route = PlanRoute(originalID)
	}
	s.nav.NavigateTo(route)
	return route
}

// ExitMode resets to normal mode. It navigates home only when the client is
// on an edit route and navigate is true; otherwise it is a pure state reset
// for callers that handle navigation themselves (e.g. after a save).
func (s *PlanModeService) ExitMode(navigate bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = domain.NormalState()
	s.drafts.ClearAll()

	if navigate && IsEditRoute(s.nav.CurrentRoute()) {
		s.nav.NavigateTo(RouteHome)
		return RouteHome
	}
	return ""
}

// Rehydrate restores a persisted draft after startup. A draft referencing a
// plan that no longer exists in the metadata cache is stale (deleted in
// another session) and is silently wiped; this is self-healing, not a
// user-facing error. When the cache never managed to load the plan list the
// draft cannot be judged, so it stays persisted untouched. Call after the
// cache's first FetchPlanMetadata.
func (s *PlanModeService) Rehydrate() {
	snap := s.drafts.ReadAll()
	if snap.Mode == "" || snap.Mode == string(domain.ModeNormal) {
		return
	}
	if !domain.ValidPlanMode(snap.Mode) || snap.DraftPlan == nil {
		log.Printf("planmode: persisted draft state is incomplete, discarding")
		s.drafts.ClearAll()
		return
	}
	if snap.OriginalID != "" && !s.cache.HasPlan(snap.OriginalID) {
		// Only a loaded plan list can prove the reference stale. If the
		// startup fetch failed, leave the draft persisted and start in
		// normal mode; a later session can still restore it.
		if !s.cache.Fetched() {
			log.Printf("planmode: plan list unavailable, deferring restore of draft for plan %s", snap.OriginalID)
			return
		}
		log.Printf("planmode: persisted draft references missing plan %s, discarding", snap.OriginalID)
		s.drafts.ClearAll()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch domain.PlanMode(snap.Mode) {
	case domain.ModeView:
		s.state = domain.ViewingState(snap.DraftPlan, snap.OriginalID)
	case domain.ModeEdit:
		s.state = domain.EditingState(snap.DraftPlan, snap.OriginalID)
		// A draft that was worth persisting is treated as unsaved work, so
		// the conflict rule keeps protecting it after a restart.
		s.state.HasUnsavedChanges = true
	}
}

// normalizeMetadata fills the defaults a draft may be missing before it is
// persisted.
func normalizeMetadata(doc *domain.TrainingPlanDocument) {
	if doc.Metadata.PlanName == "" {
		doc.Metadata.PlanName = defaultPlanName
	}
	if doc.Metadata.CreationDate == "" {
		doc.Metadata.CreationDate = time.Now().UTC().Format("2006-01-02")
	}
}
