package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/models/reports"
	"bitbucket.org/flowlogic/wms_backend/rootcause"
	"bitbucket.org/flowlogic/wms_backend/truth"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

const defaultPort = "8080"

var tracer = otel.Tracer("flowlogic-wms")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondError maps the error taxonomy onto HTTP statuses: not-found 404,
// validation 400, everything else 500.
func respondError(c *gin.Context, err error) {
	var notFound *utils.NotFoundError
	var validation *utils.ValidationError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	default:
		config.LogError(config.GetLogger(), "server.go", c.FullPath(), "request failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseTimeQuery(c *gin.Context, name string) *time.Time {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func truthDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		dashboard, err := reports.GetInventoryTruthDashboard(c.Request.Context(),
			parseTimeQuery(c, "dateFrom"), parseTimeQuery(c, "dateTo"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}

func listDiscrepanciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", string(models.DiscrepancyStatusOpen))
		filter := models.DiscrepancyFilter{
			Type:         models.DiscrepancyType(c.Query("type")),
			Severity:     models.Severity(c.Query("severity")),
			Status:       models.DiscrepancyStatus(status),
			Sku:          c.Query("sku"),
			LocationCode: c.Query("locationCode"),
		}
		if filter.Type != "" && !filter.Type.Valid() {
			respondError(c, utils.NewValidationError("type", "unknown discrepancy type"))
			return
		}
		limit := parseIntQuery(c, "limit", 100)
		offset := parseIntQuery(c, "offset", 0)
		if limit <= 0 {
			limit = 100
		}

		rows, total, err := models.ListDiscrepancies(c.Request.Context(), filter,
			c.DefaultQuery("sortBy", "severity"), c.DefaultQuery("sortOrder", "desc"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"discrepancies": rows,
			"total":         total,
			"page":          offset/limit + 1,
			"totalPages":    (total + int64(limit) - 1) / int64(limit),
		})
	}
}

type analyzeRequest struct {
	AnalysisType string `json:"analysisType"`
	Scope        struct {
		Sku          string `json:"sku"`
		LocationCode string `json:"locationCode"`
	} `json:"scope"`
	Days int `json:"days"`
}

func analyzeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, utils.NewValidationError("body", err.Error()))
			return
		}
		if req.AnalysisType == "" {
			req.AnalysisType = truth.AnalysisTypeFull
		}
		if req.Days <= 0 {
			req.Days = 30
		}

		ctx, span := tracer.Start(c.Request.Context(), "truth.analyze")
		defer span.End()

		// One analysis per scope at a time; overlapping runs would race the
		// registry's read-then-write de-duplication.
		lockKey := fmt.Sprintf("truth:analyze:%s:%s", req.Scope.Sku, req.Scope.LocationCode)
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, lockKey, 5*time.Minute, nil)
			if errors.Is(err, redislock.ErrNotObtained) {
				c.JSON(http.StatusConflict, gin.H{"error": "analysis already running for this scope"})
				return
			}
			if err == nil {
				defer func() {
					if releaseErr := lock.Release(ctx); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
						config.LogError(config.GetLogger(), "server.go", "analyzeHandler", "release lock", lockKey, releaseErr)
					}
				}()
			}
		}

		scope := models.RecordScope{}
		if req.Scope.Sku != "" {
			scope.Sku = utils.NewPtr(req.Scope.Sku)
		}
		if req.Scope.LocationCode != "" {
			scope.LocationCode = utils.NewPtr(req.Scope.LocationCode)
		}
		now := time.Now().UTC()
		window := models.TimeWindow{From: now.AddDate(0, 0, -req.Days), To: now}

		engine := truth.NewEngine(truth.DefaultDetectors(models.TruthStore{}), models.DiscrepancyRegistry{}, config.GetLogger())
		result, err := engine.Run(ctx, req.AnalysisType, scope, window)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func reconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := reports.ReconcileSnapshots(c.Request.Context(),
			c.Query("snapshotId"), c.Query("compareToSnapshotId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func driftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		drift, err := reports.AnalyzeDrift(c.Request.Context(),
			c.Query("sku"), c.Query("locationCode"), parseIntQuery(c, "days", 30))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, drift)
	}
}

func hotspotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		hotspots, err := reports.GetHotspots(c.Request.Context(),
			c.DefaultQuery("type", "location"), parseIntQuery(c, "limit", 20), parseIntQuery(c, "days", 30))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, hotspots)
	}
}

func exportDiscrepanciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.DiscrepancyFilter{
			Type:     models.DiscrepancyType(c.Query("type")),
			Severity: models.Severity(c.Query("severity")),
			Status:   models.DiscrepancyStatus(c.Query("status")),
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=discrepancies.xlsx")
		if err := reports.ExportDiscrepanciesExcel(c.Request.Context(), c.Writer, filter); err != nil {
			respondError(c, err)
		}
	}
}

func resolveDiscrepancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("discrepancyId"))
		if err != nil {
			respondError(c, utils.NewValidationError("discrepancyId", "must be an integer"))
			return
		}
		if err := models.ResolveDiscrepancy(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(models.DiscrepancyStatusResolved)})
	}
}

func investigateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("discrepancyId"))
		if err != nil {
			respondError(c, utils.NewValidationError("discrepancyId", "must be an integer"))
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "rootcause.investigate")
		defer span.End()
		dossier, err := rootcause.Investigate(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dossier)
	}
}

func causeGraphHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("discrepancyId"))
		if err != nil {
			respondError(c, utils.NewValidationError("discrepancyId", "must be an integer"))
			return
		}
		graph, err := rootcause.BuildCauseGraph(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, graph)
	}
}

func patternsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		patterns, err := rootcause.FindPatterns(c.Request.Context(),
			parseIntQuery(c, "days", 30), parseIntQuery(c, "minOccurrences", 3))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, patterns)
	}
}

func correlationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlations, err := rootcause.FindCorrelations(c.Request.Context(), c.DefaultQuery("dimension", "location"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, correlations)
	}
}

type assignRequest struct {
	DiscrepancyId int     `json:"discrepancyId" validate:"required"`
	RootCause     string  `json:"rootCause" validate:"required"`
	Category      string  `json:"category" validate:"required"`
	Notes         *string `json:"notes"`
	AssignedTo    *string `json:"assignedTo"`
}

func assignRootCauseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, utils.NewValidationError("body", err.Error()))
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		investigation, err := models.AssignRootCause(c.Request.Context(), req.DiscrepancyId,
			req.RootCause, models.RootCauseCategory(req.Category), req.Notes, req.AssignedTo)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, investigation)
	}
}

func operatorAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.Atoi(c.Param("userId"))
		if err != nil {
			respondError(c, utils.NewValidationError("userId", "must be an integer"))
			return
		}
		analysis, err := rootcause.AnalyzeOperator(c.Request.Context(), userID, parseIntQuery(c, "days", 30))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

func locationAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analysis, err := rootcause.AnalyzeLocation(c.Request.Context(),
			c.Param("locationCode"), parseIntQuery(c, "days", 30))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	truthGroup := r.Group("/api/truth")
	{
		truthGroup.GET("/dashboard", truthDashboardHandler())
		truthGroup.GET("/discrepancies", listDiscrepanciesHandler())
		truthGroup.GET("/discrepancies/export", exportDiscrepanciesHandler())
		truthGroup.POST("/discrepancies/:discrepancyId/resolve", resolveDiscrepancyHandler())
		truthGroup.POST("/analyze", analyzeHandler())
		truthGroup.GET("/reconciliation", reconciliationHandler())
		truthGroup.GET("/drift", driftHandler())
		truthGroup.GET("/hotspots", hotspotsHandler())
	}

	rootCauseGroup := r.Group("/api/root-cause")
	{
		rootCauseGroup.GET("/investigate/:discrepancyId", investigateHandler())
		rootCauseGroup.GET("/graph/:discrepancyId", causeGraphHandler())
		rootCauseGroup.GET("/patterns", patternsHandler())
		rootCauseGroup.GET("/correlations", correlationsHandler())
		rootCauseGroup.POST("/assign", assignRootCauseHandler())
		rootCauseGroup.GET("/operator-analysis/:userId", operatorAnalysisHandler())
		rootCauseGroup.GET("/location-analysis/:locationCode", locationAnalysisHandler())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
