package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/service"

	"github.com/gin-gonic/gin"
)

// ModeHandler exposes the plan mode state machine and the dialog
// coordination flags. All transitions run against the caller's own state
// container.
type ModeHandler struct {
	registry *service.StateRegistry
}

// NewModeHandler creates a new ModeHandler.
func NewModeHandler(registry *service.StateRegistry) *ModeHandler {
	return &ModeHandler{registry: registry}
}

// --- Request/Response Structs ---

type EnterEditRequest struct {
	// PlanID selects an existing plan to edit. Empty means a brand-new plan,
	// in which case Plan must carry the starting document.
	PlanID string                       `json:"planId"`
	Plan   *domain.TrainingPlanDocument `json:"plan"`
}

type EnterViewRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

type UpdateDraftRequest struct {
	Plan domain.TrainingPlanDocument `json:"plan" binding:"required"`
}

type ExitModeRequest struct {
	Navigate *bool `json:"navigate"`
}

type RouteRequest struct {
	Route string `json:"route" binding:"required"`
}

type ModeStateResponse struct {
	Mode              string                       `json:"mode"`
	DraftPlan         *domain.TrainingPlanDocument `json:"draftPlan,omitempty"`
	OriginalPlanID    string                       `json:"originalPlanId,omitempty"`
	HasUnsavedChanges bool                         `json:"hasUnsavedChanges"`
	CurrentRoute      string                       `json:"currentRoute"`
}

func mapModeState(st *service.UserState) ModeStateResponse {
	state := st.Mode.State()
	return ModeStateResponse{
		Mode:              string(state.Mode),
		DraftPlan:         state.DraftPlan,
		OriginalPlanID:    state.OriginalPlanID,
		HasUnsavedChanges: state.HasUnsavedChanges,
		CurrentRoute:      st.Routes.CurrentRoute(),
	}
}

func (h *ModeHandler) userState(c *gin.Context) (*service.UserState, bool) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return nil, false
	}
	return h.registry.ForUser(c.Request.Context(), userID), true
}

// respondConflict turns the edit-conflict signal into a 409 the UI layer
// recognizes and answers with a confirmation dialog, staging the target so
// a later confirm can discard-and-switch.
func respondConflict(c *gin.Context, st *service.UserState, conflict *EditConflictTarget) {
	st.UI.OpenSwitchWarning(conflict.PlanID)
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{
		"error":        conflict.Signal,
		"targetPlanId": conflict.PlanID,
	})
}

// EditConflictTarget is the decoded conflict signal.
type EditConflictTarget struct {
	Signal string
	PlanID string
}

func asEditConflict(err error) *EditConflictTarget {
	var conflict *service.EditConflictError
	if errors.As(err, &conflict) {
		return &EditConflictTarget{Signal: conflict.Error(), PlanID: conflict.TargetPlanID}
	}
	return nil
}

// --- Handler Methods ---

// GetMode returns the current state machine state and route.
func (h *ModeHandler) GetMode(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, mapModeState(st))
}

// EnterEdit starts editing an existing plan (planId set) or a brand-new one
// (plan document in the body).
func (h *ModeHandler) EnterEdit(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	var req EnterEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	doc := req.Plan
	if req.PlanID != "" && doc == nil {
		stored, err := st.Cache.FetchPlanByID(c.Request.Context(), req.PlanID)
		if err != nil {
			respondCacheError(c, st, err)
			return
		}
		doc = &stored.PlanData
	}
	if doc == nil {
		// A brand-new plan starts from an empty but well-formed document.
		doc = domain.EmptyPlanDocument()
	}

	route, err := st.Mode.EnterEditMode(doc, req.PlanID)
	if err != nil {
		if conflict := asEditConflict(err); conflict != nil {
			respondConflict(c, st, conflict)
			return
		}
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirectTo": route, "state": mapModeState(st)})
}

// EnterView loads a plan read-only into view mode.
func (h *ModeHandler) EnterView(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	var req EnterViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	stored, err := st.Cache.FetchPlanByID(c.Request.Context(), req.PlanID)
	if err != nil {
		respondCacheError(c, st, err)
		return
	}

	if err := st.Mode.EnterViewMode(&stored.PlanData, req.PlanID); err != nil {
		if conflict := asEditConflict(err); conflict != nil {
			respondConflict(c, st, conflict)
			return
		}
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": mapModeState(st)})
}

// UpdateDraft replaces the draft document.
func (h *ModeHandler) UpdateDraft(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if err := st.Mode.UpdateDraftPlan(&req.Plan); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": mapModeState(st)})
}

// SaveDraft persists the edit-mode draft. Failures leave the draft intact
// so the client can retry the same action.
func (h *ModeHandler) SaveDraft(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	id, route, err := st.Mode.SaveDraftPlan(c.Request.Context())
	if err != nil {
		respondSaveError(c, st, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "redirectTo": route})
}

// SaveCopy copies the viewed plan into the caller's own plans.
func (h *ModeHandler) SaveCopy(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	id, route, err := st.Mode.SaveViewedPlanToMyPlans(c.Request.Context())
	if err != nil {
		respondSaveError(c, st, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "redirectTo": route})
}

// Discard drops the draft and reports where to navigate back to.
func (h *ModeHandler) Discard(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	route := st.Mode.DiscardDraftPlan()
	c.JSON(http.StatusOK, gin.H{"redirectTo": route})
}

// Exit resets to normal mode. With navigate=false it is a pure state reset
// for clients that handle navigation themselves.
func (h *ModeHandler) Exit(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	var req ExitModeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	navigate := req.Navigate == nil || *req.Navigate

	route := st.Mode.ExitMode(navigate)
	c.JSON(http.StatusOK, gin.H{"redirectTo": route})
}

// ReportRoute records a navigation the client performed itself. Arriving at
// the home route clears the active plan and any non-normal mode.
func (h *ModeHandler) ReportRoute(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	st.Routes.SetCurrent(req.Route)
	if req.Route == service.RouteHome {
		st.Mode.ExitMode(false)
		st.Cache.ClearActivePlan()
	}
	c.JSON(http.StatusOK, gin.H{"state": mapModeState(st)})
}

func respondSaveError(c *gin.Context, st *service.UserState, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		abortWithError(c, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, service.ErrNotEditing), errors.Is(err, service.ErrNotViewing):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		msg := st.Cache.LastError()
		if msg == "" {
			msg = "store operation failed"
		}
		abortWithError(c, http.StatusBadGateway, msg)
	}
}

// --- Dialog coordination ---

type DialogTargetRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

type JSONEditorRequest struct {
	Plan domain.TrainingPlanDocument `json:"plan" binding:"required"`
}

// GetUIState returns the ephemeral dialog flags.
func (h *ModeHandler) GetUIState(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st.UI.State())
}

// OpenDeleteDialog stages a local removal pending confirmation.
func (h *ModeHandler) OpenDeleteDialog(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	var req DialogTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	st.UI.OpenDeleteDialog(req.PlanID)
	c.JSON(http.StatusOK, st.UI.State())
}

// ConfirmDelete removes the staged plan from the local cache.
func (h *ModeHandler) ConfirmDelete(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	removed := st.UI.ConfirmDelete()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ConfirmSwitch discards the held draft and reports the staged plan's route.
func (h *ModeHandler) ConfirmSwitch(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	route, confirmed := st.UI.ConfirmSwitch()
	if !confirmed {
		abortWithError(c, http.StatusBadRequest, "no plan switch is pending")
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirectTo": route})
}

// OpenJSONEditor stages a document for the raw JSON editor dialog.
func (h *ModeHandler) OpenJSONEditor(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	var req JSONEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	st.UI.OpenJSONEditor(&req.Plan)
	c.JSON(http.StatusOK, st.UI.State())
}

// CancelDialog closes whatever dialog is open.
func (h *ModeHandler) CancelDialog(c *gin.Context) {
	st, ok := h.userState(c)
	if !ok {
		return
	}
	st.UI.CancelDialog()
	c.JSON(http.StatusOK, st.UI.State())
}
