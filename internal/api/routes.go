package api

import (
	"net/http"

	"github.com/rrirrirr/training-json/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	registry *service.StateRegistry,
	shareService service.ShareService,
) {
	authHandler := NewAuthHandler(authService)
	planHandler := NewPlanHandler(registry, shareService)
	modeHandler := NewModeHandler(registry)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		// --- Plan CRUD + import/share ---
		planGroup := protected.Group("/plans")
		{
			planGroup.GET("", planHandler.ListPlans)
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.POST("/import", planHandler.ImportPlan)
			planGroup.GET("/:id", planHandler.GetPlan)
			planGroup.PUT("/:id", planHandler.UpdatePlan)
			// DELETE only drops the local cache entry; the store record stays.
			planGroup.DELETE("/:id", planHandler.RemovePlan)
			planGroup.POST("/:id/share", planHandler.SharePlan)
			planGroup.GET("/:id/viewstate", planHandler.GetViewState)
			planGroup.PUT("/:id/viewstate", planHandler.PutViewState)
		}

		// --- Plan mode state machine ---
		modeGroup := protected.Group("/mode")
		{
			modeGroup.GET("", modeHandler.GetMode)
			modeGroup.POST("/edit", modeHandler.EnterEdit)
			modeGroup.POST("/view", modeHandler.EnterView)
			modeGroup.PUT("/draft", modeHandler.UpdateDraft)
			modeGroup.POST("/save", modeHandler.SaveDraft)
			modeGroup.POST("/save-copy", modeHandler.SaveCopy)
			modeGroup.POST("/discard", modeHandler.Discard)
			modeGroup.POST("/exit", modeHandler.Exit)
		}

		// The client reports its own navigations here so ExitMode can tell
		// whether it is leaving an edit route.
		protected.POST("/route", modeHandler.ReportRoute)

		// --- Dialog coordination ---
		uiGroup := protected.Group("/ui")
		{
			uiGroup.GET("", modeHandler.GetUIState)
			uiGroup.POST("/delete", modeHandler.OpenDeleteDialog)
			uiGroup.POST("/delete/confirm", modeHandler.ConfirmDelete)
			uiGroup.POST("/switch/confirm", modeHandler.ConfirmSwitch)
			uiGroup.POST("/json-editor", modeHandler.OpenJSONEditor)
			uiGroup.POST("/cancel", modeHandler.CancelDialog)
		}
	}
}
