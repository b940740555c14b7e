package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/draft"
	"github.com/rrirrirr/training-json/internal/service"

	"github.com/gin-gonic/gin"
)

// PlanHandler exposes the metadata cache and plan CRUD over HTTP. Each
// request resolves the caller's own state container first; two accounts
// never share a cache.
type PlanHandler struct {
	registry     *service.StateRegistry
	shareService service.ShareService
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(registry *service.StateRegistry, shareService service.ShareService) *PlanHandler {
	return &PlanHandler{registry: registry, shareService: shareService}
}

// --- Request/Response Structs ---

type PlanMetadataResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlanListResponse carries the cached list plus the cache-level error
// string. A failed refresh still returns the previous list; the client
// decides whether to surface the error and offer a retry.
type PlanListResponse struct {
	Plans        []PlanMetadataResponse `json:"plans"`
	ActivePlanID string                 `json:"activePlanId,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

type PlanResponse struct {
	ID        string                      `json:"id"`
	PlanData  domain.TrainingPlanDocument `json:"planData"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

type CreatePlanRequest struct {
	PlanData domain.TrainingPlanDocument `json:"planData" binding:"required"`
}

type ShareResponse struct {
	URL string `json:"url"`
}

func mapMetadata(list []domain.PlanMetadata) []PlanMetadataResponse {
	out := make([]PlanMetadataResponse, len(list))
	for i, m := range list {
		out[i] = PlanMetadataResponse{
			ID:        m.ID.Hex(),
			Name:      m.Name,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return out
}

// --- Handler Methods ---

// ListPlans refreshes and returns the caller's plan summaries. On store
// failure the stale cached list is returned with the error field set, never
// an empty overwrite.
func (h *PlanHandler) ListPlans(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	list, _ := st.Cache.FetchPlanMetadata(c.Request.Context())
	_, activeID := st.Cache.ActivePlan()
	c.JSON(http.StatusOK, PlanListResponse{
		Plans:        mapMetadata(list),
		ActivePlanID: activeID,
		Error:        st.Cache.LastError(),
	})
}

// CreatePlan validates and inserts a new plan document.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if req.PlanData.Metadata.PlanName == "" {
		abortWithError(c, http.StatusBadRequest, "metadata.planName: a non-empty plan name is required")
		return
	}
	if err := domain.ValidateReferences(&req.PlanData); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := st.Cache.CreatePlan(c.Request.Context(), &req.PlanData)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, st.Cache.LastError())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "redirectTo": service.PlanRoute(id)})
}

// GetPlan fetches one full document on demand.
func (h *PlanHandler) GetPlan(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	stored, err := st.Cache.FetchPlanByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondCacheError(c, st, err)
		return
	}
	c.JSON(http.StatusOK, PlanResponse{
		ID:        stored.ID.Hex(),
		PlanData:  stored.PlanData,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	})
}

// UpdatePlan validates and writes an updated document.
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := domain.ValidateReferences(&req.PlanData); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := st.Cache.UpdatePlan(c.Request.Context(), c.Param("id"), &req.PlanData); err != nil {
		respondCacheError(c, st, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// RemovePlan drops the plan from the caller's local cache. The store record
// is never deleted.
func (h *PlanHandler) RemovePlan(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	removed := st.Cache.RemoveLocalPlan(c.Param("id"))
	if !removed {
		abortWithError(c, http.StatusNotFound, "plan is not in the local list")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// ImportPlan accepts raw T-JSON (clipboard paste or file upload body),
// validates the import contract and the referential invariants, then
// persists the document as a new plan.
func (h *PlanHandler) ImportPlan(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	raw, err := c.GetRawData()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "could not read request body")
		return
	}

	doc, err := domain.ValidateImport(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := domain.ValidateReferences(doc); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := st.Cache.CreatePlan(c.Request.Context(), doc)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, st.Cache.LastError())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "redirectTo": service.PlanRoute(id)})
}

// SharePlan exports a snapshot and returns a time-limited link to it.
func (h *PlanHandler) SharePlan(c *gin.Context) {
	url, err := h.shareService.SharePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlanID):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		default:
			abortWithError(c, http.StatusBadGateway, "could not create plan snapshot")
		}
		return
	}
	c.JSON(http.StatusOK, ShareResponse{URL: url})
}

// GetViewState returns the per-plan presentation state a viewer stored.
func (h *PlanHandler) GetViewState(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	state := st.Drafts.GetViewState(c.Param("id"))
	if state == nil {
		state = &draft.ViewState{}
	}
	c.JSON(http.StatusOK, state)
}

// PutViewState stores per-plan presentation state. Best effort: a broken
// draft store degrades to in-memory, never to an error response.
func (h *PlanHandler) PutViewState(c *gin.Context) {
	userID, ok := getUserObjectID(c)
	if !ok {
		return
	}
	st := h.registry.ForUser(c.Request.Context(), userID)

	var state draft.ViewState
	if err := c.ShouldBindJSON(&state); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	st.Drafts.SetViewState(c.Param("id"), &state)
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// respondCacheError maps cache-layer sentinels to HTTP statuses.
func respondCacheError(c *gin.Context, st *service.UserState, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPlanID):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPlanNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	default:
		msg := st.Cache.LastError()
		if msg == "" {
			msg = "store operation failed"
		}
		abortWithError(c, http.StatusBadGateway, msg)
	}
}
