// Package api exposes the orchestrator over HTTP. Read accessors are plain
// JSON endpoints; live state is pushed over an SSE stream; execution is
// JWT-protected.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cardarb/internal/auth"
	"cardarb/internal/config"
	"cardarb/internal/execution"
	"cardarb/internal/orchestrator"
	"cardarb/pkg/middleware"
	"cardarb/pkg/response"
)

// Server holds the HTTP handlers over the orchestrator.
type Server struct {
	orch   *orchestrator.Orchestrator
	cfg    config.Settings
	logger zerolog.Logger
}

// NewRouter builds the gin router with all engine routes mounted.
func NewRouter(orch *orchestrator.Orchestrator, authService *auth.Service, cfg config.Settings, logger zerolog.Logger) *gin.Engine {
	s := &Server{
		orch:   orch,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}
	authHandlers := auth.NewGinHandlers(authService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RateLimit())

	router.GET("/health", s.healthHandler)

	api := router.Group("/api")
	{
		api.POST("/auth/token", authHandlers.GenerateTokenHandler())

		api.GET("/markets", s.marketsHandler)
		api.GET("/books", s.booksHandler)
		api.GET("/opportunities", s.opportunitiesHandler)
		api.GET("/metrics", s.metricsHandler)
		api.GET("/executions", s.executionsHandler)
		api.GET("/stream", s.streamHandler)

		protected := api.Group("")
		protected.Use(middleware.JWTAuth(authService))
		{
			protected.POST("/opportunities/:id/execute", s.executeHandler)
		}
	}

	return router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"metrics": s.orch.GetMetrics(),
	})
}

func (s *Server) marketsHandler(c *gin.Context) {
	response.Success(c, s.orch.GetMarketHealth())
}

func (s *Server) booksHandler(c *gin.Context) {
	response.Success(c, s.orch.GetOrderBooks())
}

func (s *Server) opportunitiesHandler(c *gin.Context) {
	response.Success(c, s.orch.GetOpportunities())
}

func (s *Server) metricsHandler(c *gin.Context) {
	response.Success(c, s.orch.GetMetrics())
}

func (s *Server) executionsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	executions, err := s.orch.GetRecentExecutions(c.Request.Context(), limit)
	response.Handle(c, executions, err)
}

type executeRequest struct {
	Quantity int `json:"quantity"`
}

// executeHandler acts on a tracked opportunity. Execution failures are
// client-facing: the opportunity may have been evicted or gone stale since
// the client saw it.
func (s *Server) executeHandler(c *gin.Context) {
	var req executeRequest
	// An empty body is a valid "use the default quantity" request.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "Invalid request body")
		return
	}

	exec, err := s.orch.ExecuteOpportunity(c.Request.Context(), c.Param("id"), req.Quantity)
	switch {
	case err == nil:
		response.Success(c, exec)
	case errors.Is(err, orchestrator.ErrOpportunityNotFound),
		errors.Is(err, execution.ErrNotExecutable),
		errors.Is(err, execution.ErrRiskRejected):
		response.BadRequest(c, err.Error())
	default:
		s.logger.Error().Err(err).Str("opportunity_id", c.Param("id")).Msg("execution request failed")
		response.InternalError(c, err.Error())
	}
}
