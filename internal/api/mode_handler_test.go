package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var state ModeStateResponse
	srv.decode(t, resp, &state)
	assert.Equal(t, "normal", state.Mode)
	assert.Nil(t, state.DraftPlan)

	// Start a brand-new plan.
	resp = srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{
		"plan": validPlanData("New plan"),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var enter struct {
		RedirectTo string            `json:"redirectTo"`
		State      ModeStateResponse `json:"state"`
	}
	srv.decode(t, resp, &enter)
	assert.Equal(t, "/plan/edit", enter.RedirectTo)
	assert.Equal(t, "edit", enter.State.Mode)
	assert.True(t, enter.State.HasUnsavedChanges)

	// Save it.
	resp = srv.do(t, http.MethodPost, "/api/v1/mode/save", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var saved struct {
		ID         string `json:"id"`
		RedirectTo string `json:"redirectTo"`
	}
	srv.decode(t, resp, &saved)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "/plan/"+saved.ID, saved.RedirectTo)

	resp = srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	srv.decode(t, resp, &state)
	assert.Equal(t, "normal", state.Mode)

	// The saved plan shows up in the list as the active plan.
	var list PlanListResponse
	listResp := srv.do(t, http.MethodGet, "/api/v1/plans", nil)
	srv.decode(t, listResp, &list)
	require.Len(t, list.Plans, 1)
	assert.Equal(t, "New plan", list.Plans[0].Name)
	assert.Equal(t, saved.ID, list.ActivePlanID)
}

func TestEditExistingPlanByID(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createPlan(t, "Editable")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{"planId": id})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var enter struct {
		RedirectTo string            `json:"redirectTo"`
		State      ModeStateResponse `json:"state"`
	}
	srv.decode(t, resp, &enter)
	assert.Equal(t, "/plan/"+id+"/edit", enter.RedirectTo)
	assert.Equal(t, id, enter.State.OriginalPlanID)
	assert.False(t, enter.State.HasUnsavedChanges)
	require.NotNil(t, enter.State.DraftPlan)
	assert.Equal(t, "Editable", enter.State.DraftPlan.Metadata.PlanName)
}

func TestUpdateDraftAndDiscard(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createPlan(t, "Stable")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{"planId": id})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodPut, "/api/v1/mode/draft", map[string]any{
		"plan": validPlanData("Scratch edits"),
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var update struct {
		State ModeStateResponse `json:"state"`
	}
	srv.decode(t, resp, &update)
	assert.True(t, update.State.HasUnsavedChanges)

	resp = srv.do(t, http.MethodPost, "/api/v1/mode/discard", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var discard struct {
		RedirectTo string `json:"redirectTo"`
	}
	srv.decode(t, resp, &discard)
	assert.Equal(t, "/plan/"+id, discard.RedirectTo)

	// The stored document was never touched.
	var plan PlanResponse
	getResp := srv.do(t, http.MethodGet, "/api/v1/plans/"+id, nil)
	srv.decode(t, getResp, &plan)
	assert.Equal(t, "Stable", plan.PlanData.Metadata.PlanName)
}

func TestEditConflictReturns409AndStagesDialog(t *testing.T) {
	srv := newTestServer(t)
	idA := srv.createPlan(t, "Plan A")
	idB := srv.createPlan(t, "Plan B")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{"planId": idA})
	require.Equal(t, http.StatusOK, resp.Code)
	resp = srv.do(t, http.MethodPut, "/api/v1/mode/draft", map[string]any{
		"plan": validPlanData("Plan A changed"),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{"planId": idB})
	require.Equal(t, http.StatusConflict, resp.Code)
	var conflict struct {
		Error        string `json:"error"`
		TargetPlanID string `json:"targetPlanId"`
	}
	srv.decode(t, resp, &conflict)
	assert.Equal(t, "EDIT_CONFLICT:"+idB, conflict.Error)
	assert.Equal(t, idB, conflict.TargetPlanID)

	// The draft survived the rejected switch.
	var state ModeStateResponse
	modeResp := srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	srv.decode(t, modeResp, &state)
	assert.Equal(t, "edit", state.Mode)
	assert.Equal(t, idA, state.OriginalPlanID)

	// The switch-warning dialog is staged with the blocked target.
	var ui struct {
		OpenDialog          string `json:"openDialog"`
		PendingSwitchPlanID string `json:"pendingSwitchPlanId"`
	}
	uiResp := srv.do(t, http.MethodGet, "/api/v1/ui", nil)
	srv.decode(t, uiResp, &ui)
	assert.Equal(t, "switchWarning", ui.OpenDialog)
	assert.Equal(t, idB, ui.PendingSwitchPlanID)

	// Confirming discards plan A's draft and redirects to plan B.
	resp = srv.do(t, http.MethodPost, "/api/v1/ui/switch/confirm", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var confirm struct {
		RedirectTo string `json:"redirectTo"`
	}
	srv.decode(t, resp, &confirm)
	assert.Equal(t, "/plan/"+idB, confirm.RedirectTo)

	modeResp = srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	srv.decode(t, modeResp, &state)
	assert.Equal(t, "normal", state.Mode)
}

func TestConfirmSwitchIntoNewPlanOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	idA := srv.createPlan(t, "Plan A")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{"planId": idA})
	require.Equal(t, http.StatusOK, resp.Code)
	resp = srv.do(t, http.MethodPut, "/api/v1/mode/draft", map[string]any{
		"plan": validPlanData("Plan A changed"),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	// Starting a brand-new plan is blocked too; the target id is empty.
	resp = srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{
		"plan": validPlanData("Fresh"),
	})
	require.Equal(t, http.StatusConflict, resp.Code)
	var conflict struct {
		Error        string `json:"error"`
		TargetPlanID string `json:"targetPlanId"`
	}
	srv.decode(t, resp, &conflict)
	assert.Equal(t, "EDIT_CONFLICT:", conflict.Error)
	assert.Empty(t, conflict.TargetPlanID)

	// Confirming lands in the editor with a fresh document.
	resp = srv.do(t, http.MethodPost, "/api/v1/ui/switch/confirm", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var confirm struct {
		RedirectTo string `json:"redirectTo"`
	}
	srv.decode(t, resp, &confirm)
	assert.Equal(t, "/plan/edit", confirm.RedirectTo)

	var state ModeStateResponse
	modeResp := srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	srv.decode(t, modeResp, &state)
	assert.Equal(t, "edit", state.Mode)
	assert.Empty(t, state.OriginalPlanID)
	assert.True(t, state.HasUnsavedChanges)
}

func TestConfirmSwitchWithoutPendingDialog(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/ui/switch/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestViewModeAndSaveCopy(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createPlan(t, "Borrowed")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/view", map[string]any{"planId": id})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var enter struct {
		State ModeStateResponse `json:"state"`
	}
	srv.decode(t, resp, &enter)
	assert.Equal(t, "view", enter.State.Mode)
	assert.False(t, enter.State.HasUnsavedChanges)

	resp = srv.do(t, http.MethodPost, "/api/v1/mode/save-copy", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var saved struct {
		ID string `json:"id"`
	}
	srv.decode(t, resp, &saved)
	assert.NotEqual(t, id, saved.ID)
}

func TestSaveOutsideEditModeIs400(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/mode/save", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSaveDraftKeepsDraftOnStoreFailure(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/edit", map[string]any{
		"plan": validPlanData("Fragile"),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	srv.repo.fail(errStoreDown)
	resp = srv.do(t, http.MethodPost, "/api/v1/mode/save", nil)
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	// The draft is still there for a retry.
	srv.repo.fail(nil)
	var state ModeStateResponse
	modeResp := srv.do(t, http.MethodGet, "/api/v1/mode", nil)
	srv.decode(t, modeResp, &state)
	assert.Equal(t, "edit", state.Mode)
	require.NotNil(t, state.DraftPlan)

	resp = srv.do(t, http.MethodPost, "/api/v1/mode/save", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReportRouteHomeResetsEverything(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createPlan(t, "Active")

	resp := srv.do(t, http.MethodPost, "/api/v1/mode/view", map[string]any{"planId": id})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/route", map[string]any{"route": "/"})
	require.Equal(t, http.StatusOK, resp.Code)
	var report struct {
		State ModeStateResponse `json:"state"`
	}
	srv.decode(t, resp, &report)
	assert.Equal(t, "normal", report.State.Mode)
	assert.Equal(t, "/", report.State.CurrentRoute)

	var list PlanListResponse
	listResp := srv.do(t, http.MethodGet, "/api/v1/plans", nil)
	srv.decode(t, listResp, &list)
	assert.Empty(t, list.ActivePlanID)
}

func TestExitToleratesEmptyBody(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/mode/exit", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestDeleteDialogOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createPlan(t, "Staged")

	resp := srv.do(t, http.MethodPost, "/api/v1/ui/delete", map[string]any{"planId": id})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/ui/delete/confirm", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var confirm struct {
		Removed bool `json:"removed"`
	}
	srv.decode(t, resp, &confirm)
	assert.True(t, confirm.Removed)

	var list PlanListResponse
	listResp := srv.do(t, http.MethodGet, "/api/v1/plans", nil)
	srv.decode(t, listResp, &list)
	assert.Empty(t, list.Plans)
}
