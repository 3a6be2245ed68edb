package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-scraper/internal/auth"
	"social-scraper/internal/export"
	"social-scraper/internal/monitor"
	"social-scraper/internal/pipeline"
	"social-scraper/internal/ratelimit"
	"social-scraper/internal/registry"
	"social-scraper/internal/storage"
	"social-scraper/pkg/models"
)

// Version is reported by /health
var Version = "dev"

// statsProvider is implemented by storages that can summarize history
type statsProvider interface {
	GetStats() (*storage.Stats, error)
}

// Deps are the collaborators a server dispatches to. Storage and Monitor
// are optional.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Registry *registry.Registry
	Storage  models.Storage
	Monitor  *monitor.Monitor
	Logger   *zerolog.Logger
}

// Server represents the API server
type Server struct {
	config       *models.Config
	pipeline     *pipeline.Pipeline
	registry     *registry.Registry
	storage      models.Storage
	monitor      *monitor.Monitor
	authService  *auth.AuthService
	rateLimitMgr *ratelimit.Manager
	httpServer   *http.Server
	logger       zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *models.Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil || deps.Registry == nil {
		return nil, errors.New("server needs a pipeline and a registry")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	logger = logger.With().Str("component", "server").Logger()

	mon := deps.Monitor
	if mon == nil {
		mon = monitor.NewMonitor()
	}

	var authSvc *auth.AuthService
	if cfg.Auth.Enabled {
		var err error
		authSvc, err = auth.NewAuthService(
			cfg.Auth.JWTSecret,
			cfg.Auth.AdminPassword,
			time.Duration(cfg.Auth.TokenExpiry)*time.Hour,
			&logger,
		)
		if err != nil {
			return nil, fmt.Errorf("error creating auth service: %w", err)
		}
	}

	rateLimitMgr := ratelimit.NewManager(ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		MaxConcurrent:     cfg.RateLimit.MaxConcurrent,
		WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
	}, &logger)

	return &Server{
		config:       cfg,
		pipeline:     deps.Pipeline,
		registry:     deps.Registry,
		storage:      deps.Storage,
		monitor:      mon,
		authService:  authSvc,
		rateLimitMgr: rateLimitMgr,
		logger:       logger,
	}, nil
}

// Router builds the gin engine serving the API
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(monitor.NewMiddleware(s.monitor).Handler())
	router.Use(s.corsMiddleware())

	s.setupRoutes(router)
	return router
}

// Start starts the API server
func (s *Server) Start(ctx context.Context) error {
	if s.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Surface bind errors to the caller
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
	}

	s.monitor.Start()
	s.rateLimitMgr.Start(ctx)
	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.monitor.Stop()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error shutting down server")
			return err
		}
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(s.monitor.Handler()))

	api := router.Group("/api")
	api.Use(s.rateLimitMgr.Middleware())

	v1 := api.Group("/v1")
	v1.GET("/platforms", s.listPlatforms)

	if s.authService != nil {
		authRoutes := v1.Group("/auth")
		authRoutes.POST("/login", s.login)
		authRoutes.POST("/refresh", s.refreshToken)
	}

	protected := v1.Group("")
	if s.authService != nil {
		protected.Use(auth.NewAuthMiddleware(s.authService).Required())
	}
	history := protected.Group("")
	if s.authService != nil {
		history.Use(auth.NewAuthMiddleware(s.authService).RoleRequired(auth.RoleAdmin))
	}

	protected.POST("/classify", s.classify)
	protected.POST("/scrape", s.scrape)
	protected.POST("/scrape/export", s.scrapeExport)
	protected.GET("/records", s.listRecords)

	// Run history spans every caller's scrapes
	history.GET("/runs", s.listRuns)
	history.GET("/runs/:id", s.getRun)
	history.GET("/stats", s.getStats)
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
		"busy":      s.pipeline.Busy(),
		"history":   s.storage != nil,
	})
}

func (s *Server) listPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": s.registry.GetPlatformInfo()})
}

// Login handler
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	token, expires, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "kind": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires,
	})
}

// Refresh token handler
func (s *Server) refreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	token, expires, err := s.authService.RefreshToken(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "kind": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires,
	})
}

// linkRequest is the body of classify and scrape calls
type linkRequest struct {
	URL      string `json:"url" binding:"required"`
	Platform string `json:"platform"`
	MaxItems *int   `json:"max_items"`
}

// bindLink parses the request body and the platform hint
func bindLink(c *gin.Context) (*linkRequest, models.Platform, bool) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, "", false
	}

	hint, ok := models.ParsePlatform(req.Platform)
	if !ok {
		writeError(c, fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, req.Platform))
		return nil, "", false
	}

	if req.MaxItems != nil && *req.MaxItems < 0 {
		badRequest(c, "max_items cannot be negative")
		return nil, "", false
	}
	return &req, hint, true
}

func (r *linkRequest) maxItems() int {
	if r.MaxItems == nil {
		return -1
	}
	return *r.MaxItems
}

func (s *Server) classify(c *gin.Context) {
	req, hint, ok := bindLink(c)
	if !ok {
		return
	}

	l, strategy, err := s.pipeline.Classify(req.URL, hint)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        l.Raw,
		"normalized": l.Normalized,
		"platform":   l.Platform,
		"kind":       l.Kind,
		"strategy":   strategy.ID,
		"fields":     strategy.Extractor.Fields(l.Kind),
	})
}

func (s *Server) scrape(c *gin.Context) {
	req, hint, ok := bindLink(c)
	if !ok {
		return
	}

	result, err := s.pipeline.TryRun(c.Request.Context(), req.URL, hint, req.maxItems())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      result.RunID,
		"link":        result.Link,
		"strategy":    result.Strategy,
		"duration_ms": result.Duration.Milliseconds(),
		"count":       result.Table.Len(),
		"columns":     result.Table.Columns,
		"records":     recordsJSON(result.Table),
		"skipped":     result.Table.Skipped,
	})
}

func (s *Server) scrapeExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", s.config.Export.Format))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	req, hint, ok := bindLink(c)
	if !ok {
		return
	}

	result, err := s.pipeline.TryRun(c.Request.Context(), req.URL, hint, req.maxItems())
	if err != nil {
		writeError(c, err)
		return
	}

	exporter := export.NewDataExporter(export.ExportConfig{
		Format:    format,
		WithExtra: s.config.Export.WithExtra || c.Query("extra") == "true",
	})
	data, err := exporter.Bytes(result.Table)
	if err != nil {
		writeError(c, err)
		return
	}

	filename := export.DefaultFilename(result.Link.Platform, format, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Run-ID", result.RunID)
	c.Data(http.StatusOK, export.ContentType(format), data)
}

func (s *Server) listRecords(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	filter := models.RecordFilter{
		Limit:     queryInt(c, "limit", 50, 500),
		Offset:    queryInt(c, "offset", 0, -1),
		SourceURL: c.Query("source"),
	}
	if v := c.Query("platform"); v != "" {
		p, ok := models.ParsePlatform(v)
		if !ok {
			writeError(c, fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, v))
			return
		}
		if p != models.PlatformUnknown {
			filter.Platform = &p
		}
	}
	if v := c.Query("kind"); v != "" {
		k := models.Kind(v)
		if k != models.KindProfile && k != models.KindPost {
			badRequest(c, fmt.Sprintf("unknown kind %q", v))
			return
		}
		filter.Kind = &k
	}

	stored, err := s.storage.ListRecords(filter)
	if err != nil {
		writeError(c, err)
		return
	}
	norm := s.pipeline.Normalizer()
	table, err := storage.ToTable(norm.Columns(), norm.Placeholder(), stored)
	if err != nil {
		writeError(c, err)
		return
	}

	records := make([]gin.H, len(stored))
	for i, sr := range stored {
		records[i] = gin.H{
			"run_id":     sr.RunID,
			"updated_at": sr.UpdatedAt,
			"values":     table.Records[i].Values,
		}
		if len(table.Records[i].Extra) > 0 {
			records[i]["extra"] = table.Records[i].Extra
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns": table.Columns,
		"records": records,
		"count":   len(records),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (s *Server) listRuns(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	runs, err := s.storage.ListRuns(queryInt(c, "limit", 20, 200))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}

	run, err := s.storage.GetRun(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "kind": "NotFound"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) getStats(c *gin.Context) {
	response := gin.H{"system": s.monitor.HealthCheck()}

	if sp, ok := s.storage.(statsProvider); ok {
		stats, err := sp.GetStats()
		if err != nil {
			writeError(c, err)
			return
		}
		response["history"] = stats
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled", "kind": "HistoryDisabled"})
		return false
	}
	return true
}

// recordsJSON drops the per-record link, which the response carries once
func recordsJSON(table *models.Table) []gin.H {
	out := make([]gin.H, len(table.Records))
	for i, rec := range table.Records {
		out[i] = gin.H{"values": rec.Values}
		if len(rec.Extra) > 0 {
			out[i]["extra"] = rec.Extra
		}
	}
	return out
}

// queryInt reads a non-negative integer parameter, capped at max when max
// is positive
func queryInt(c *gin.Context, name string, def, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// CORS middleware
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs one line per request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		if user, ok := auth.GetUsername(c); ok {
			event = event.Str("user", user)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}
