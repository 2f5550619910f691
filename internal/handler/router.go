package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/middleware"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/token"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	JWTManager   *token.JWTManager
	Users        service.UserService
	Admin        service.AdminService
	Builder      service.BuilderService
	Assessments  service.AssessmentService
	Search       service.SearchService
	LiveDebounce time.Duration
}

// RegisterRoutes mounts the API under /api/v1 and the live evaluation
// websocket under /assessments/live/:token.
func RegisterRoutes(r *gin.Engine, d Deps) {
	authed := middleware.AuthMiddleware(d.JWTManager, d.Users)
	userHandler := NewUserHandler(d.Users)
	adminHandler := NewAdminHandler(d.Admin)
	builderHandler := NewBuilderHandler(d.Builder)
	assessmentHandler := NewAssessmentHandler(d.Assessments, d.Users, d.JWTManager, d.LiveDebounce)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", NewAuthHandler(d.Users).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			me := users.Group("/")
			me.Use(authed)
			{
				me.GET("/me", userHandler.GetProfile)
				me.POST("/logout", userHandler.Logout)
			}
		}

		apiV1.GET("/governance-areas", authed, adminHandler.ListGovernanceAreas)

		admin := apiV1.Group("/admin")
		admin.Use(authed, middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/list", adminHandler.ListUsers)
			admin.PUT("/users/:userId/role", adminHandler.AssignRole)

			areas := admin.Group("/governance-areas")
			{
				areas.POST("", adminHandler.CreateGovernanceArea)
				areas.GET("", adminHandler.ListGovernanceAreas)
				areas.PUT("/:id", adminHandler.UpdateGovernanceArea)
				areas.DELETE("/:id", adminHandler.DeleteGovernanceArea)
			}
		}

		drafts := apiV1.Group("/drafts")
		drafts.Use(authed, middleware.AdminAuthMiddleware())
		{
			drafts.GET("", builderHandler.ListDrafts)
			drafts.POST("", builderHandler.CreateDraft)
			drafts.POST("/import", builderHandler.ImportDraft)

			draft := drafts.Group("/:draftId")
			{
				draft.POST("/open", builderHandler.OpenDraft)
				draft.POST("/close", builderHandler.CloseDraft)
				draft.POST("/save", builderHandler.SaveDraft)
				draft.POST("/publish", builderHandler.PublishDraft)
				draft.GET("/tree", builderHandler.Tree)
				draft.GET("/snapshot", builderHandler.Snapshot)
				draft.GET("/children", builderHandler.Children)
				draft.PUT("/governance-area", builderHandler.SetGovernanceArea)
				draft.PUT("/order", builderHandler.ReorderIndicators)
				draft.DELETE("/selection", builderHandler.ClearSelection)

				draft.POST("/indicators", builderHandler.AddIndicator)
				draft.GET("/indicators/:id", builderHandler.GetIndicator)
				draft.PATCH("/indicators/:id", builderHandler.UpdateIndicator)
				draft.DELETE("/indicators/:id", builderHandler.DeleteIndicator)
				draft.POST("/indicators/:id/duplicate", builderHandler.DuplicateIndicator)
				draft.POST("/indicators/:id/move", builderHandler.MoveIndicator)
				draft.GET("/indicators/:id/siblings", builderHandler.Siblings)
				draft.POST("/indicators/:id/archive", builderHandler.ArchiveSchemas)
				draft.POST("/indicators/:id/restore", builderHandler.RestoreSchemas)
				draft.POST("/indicators/:id/select", builderHandler.SelectIndicator)
			}
		}

		assessments := apiV1.Group("/assessments")
		assessments.Use(authed, middleware.RequireRoles(model.RoleAdmin, model.RoleAssessor, model.RoleBLGU))
		{
			assessments.POST("/evaluate", assessmentHandler.Evaluate)
			assessments.POST("/:assessmentId/verdicts", assessmentHandler.SubmitVerdict)
			assessments.GET("/:assessmentId/verdicts", assessmentHandler.ListVerdicts)
		}

		search := apiV1.Group("/search")
		search.Use(authed)
		{
			search.GET("/indicators", NewSearchHandler(d.Search).SearchIndicators)
		}
	}

	r.GET("/assessments/live/:token", assessmentHandler.Live)
}
