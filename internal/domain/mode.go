package domain

// PlanMode distinguishes the three mutually-exclusive UI modes.
type PlanMode string

const (
	// ModeNormal: no draft; the plan on screen, if any, is the user's own
	// persisted active selection.
	ModeNormal PlanMode = "normal"
	// ModeView: a non-owned plan is displayed read-only, save-able into
	// "my plans".
	ModeView PlanMode = "view"
	// ModeEdit: a plan (new or existing) is being mutated as a draft.
	ModeEdit PlanMode = "edit"
)

// ValidPlanMode reports whether s names one of the three modes. Used when
// rehydrating persisted state, which may contain anything.
func ValidPlanMode(s string) bool {
	switch PlanMode(s) {
	case ModeNormal, ModeView, ModeEdit:
		return true
	}
	return false
}

// PlanModeState is the state machine's full state. Invariants:
//   - DraftPlan is non-nil iff Mode != ModeNormal.
//   - Mode == ModeEdit with empty OriginalPlanID denotes a brand-new,
//     never-persisted plan, and HasUnsavedChanges is forced true.
//
// Construct only through NormalState, ViewingState, and EditingState so the
// invariants hold for every reachable value.
type PlanModeState struct {
	Mode              PlanMode              `json:"mode"`
	DraftPlan         *TrainingPlanDocument `json:"draftPlan,omitempty"`
	OriginalPlanID    string                `json:"originalPlanId,omitempty"`
	HasUnsavedChanges bool                  `json:"hasUnsavedChanges"`
}

// NormalState is the empty state: no draft, nothing unsaved.
func NormalState() PlanModeState {
	return PlanModeState{Mode: ModeNormal}
}

// ViewingState enters view mode for a plan the user does not own.
func ViewingState(plan *TrainingPlanDocument, planID string) PlanModeState {
	return PlanModeState{
		Mode:           ModeView,
		DraftPlan:      plan,
		OriginalPlanID: planID,
	}
}

// EditingState enters edit mode. An empty originalID means a brand-new plan
// that has never been persisted, which is unsaved by definition.
func EditingState(plan *TrainingPlanDocument, originalID string) PlanModeState {
	return PlanModeState{
		Mode:              ModeEdit,
		DraftPlan:         plan,
		OriginalPlanID:    originalID,
		HasUnsavedChanges: originalID == "",
	}
}

// IsNormal reports whether no draft is held.
func (s PlanModeState) IsNormal() bool { return s.Mode == ModeNormal }
