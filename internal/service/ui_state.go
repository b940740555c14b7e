package service

import (
	"sync"

	"github.com/rrirrirr/training-json/internal/domain"
)

// DialogKind identifies which modal, if any, is open.
type DialogKind string

const (
	DialogNone          DialogKind = ""
	DialogDeletePlan    DialogKind = "deletePlan"
	DialogSwitchWarning DialogKind = "switchWarning"
	DialogJSONEditor    DialogKind = "jsonEditor"
)

// UIState holds the ephemeral, non-persisted dialog flags and the single
// target object each dialog needs. Nothing here survives a restart.
type UIState struct {
	OpenDialog          DialogKind                   `json:"openDialog"`
	PendingDeletePlanID string                       `json:"pendingDeletePlanId,omitempty"`
	PendingSwitchPlanID string                       `json:"pendingSwitchPlanId,omitempty"`
	JSONEditorDoc       *domain.TrainingPlanDocument `json:"jsonEditorDoc,omitempty"`
}

// UIStateService is the UI coordination layer: it tracks which confirmation
// is pending and, on confirm, calls into the state machine or the cache. It
// holds no business rules of its own beyond "is a destructive action pending
// confirmation".
type UIStateService struct {
	mode  *PlanModeService
	cache *PlanCacheService

	mu    sync.Mutex
	state UIState
}

func NewUIStateService(mode *PlanModeService, cache *PlanCacheService) *UIStateService {
	return &UIStateService{mode: mode, cache: cache}
}

// State returns a copy of the current dialog state.
func (s *UIStateService) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenDeleteDialog stages a local-cache removal pending confirmation.
func (s *UIStateService) OpenDeleteDialog(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = UIState{OpenDialog: DialogDeletePlan, PendingDeletePlanID: planID}
}

// ConfirmDelete removes the staged plan from the local cache. The store
// record is untouched.
func (s *UIStateService) ConfirmDelete() bool {
	s.mu.Lock()
	id := s.state.PendingDeletePlanID
	s.state = UIState{}
	s.mu.Unlock()
	if id == "" {
		return false
	}
	return s.cache.RemoveLocalPlan(id)
}

// OpenSwitchWarning stages the plan the user tried to switch to while
// holding an unsaved edit on a different plan. An empty target means the
// user tried to start a brand-new plan.
func (s *UIStateService) OpenSwitchWarning(targetPlanID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = UIState{OpenDialog: DialogSwitchWarning, PendingSwitchPlanID: targetPlanID}
}

// ConfirmSwitch discards the held draft and returns the route of what the
// user wanted instead: the staged plan, or the editor with a fresh document
// when the blocked switch was into a brand-new plan. This is the only path
// that clears another plan's draft.
func (s *UIStateService) ConfirmSwitch() (string, bool) {
	s.mu.Lock()
	pending := s.state.OpenDialog == DialogSwitchWarning
	target := s.state.PendingSwitchPlanID
	s.state = UIState{}
	s.mu.Unlock()
	if !pending {
		return "", false
	}
	s.mode.DiscardDraftPlan()
	if target == "" {
		route, err := s.mode.EnterEditMode(domain.EmptyPlanDocument(), "")
		if err != nil {
			return "", false
		}
		return route, true
	}
	return PlanRoute(target), true
}

// OpenJSONEditor shows a document in the raw JSON editor dialog.
func (s *UIStateService) OpenJSONEditor(doc *domain.TrainingPlanDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = UIState{OpenDialog: DialogJSONEditor, JSONEditorDoc: doc}
}

// CancelDialog closes whatever dialog is open without acting on it.
func (s *UIStateService) CancelDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = UIState{}
}
