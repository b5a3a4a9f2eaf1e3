package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campushub/internal/ads"
	"campushub/internal/auth"
	"campushub/internal/config"
	"campushub/internal/httpmiddleware"
	"campushub/internal/queue"
	"campushub/internal/reference"
	"campushub/internal/registry"
	"campushub/internal/store"
	"campushub/internal/user"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// queueNotifier hands registration notices to the work queue; cmd/worker
// performs the actual channel delivery.
type queueNotifier struct {
	q queue.Queue
}

func (n *queueNotifier) NotifyRegistration(ctx context.Context, notice registry.Notice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return n.q.Publish(ctx, queue.Message{Type: "registration", Body: body})
}

func runHTTP(cfg config.App) error {
	var db *store.DB
	var err error
	if cfg.StoreBackend == "postgres" {
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Printf("warning: db not reachable: %v", err)
		}
		defer func() {
			if db != nil {
				_ = db.Close()
			}
		}()
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campushub:notifications")
	}

	var eventStore registry.Store
	var catalog ads.CatalogStore
	var profiles user.Store
	if cfg.StoreBackend == "postgres" && db != nil {
		eventStore = registry.NewPostgresStore(db.Client)
		catalog = ads.NewPostgresCatalog(db.Client)
		profiles = user.NewRedisStore(redisClient.Client)
	} else {
		eventStore = registry.NewMemoryStore()
		catalog = ads.NewMemoryCatalog()
		profiles = user.NewMemoryStore()
	}

	var validator reference.Validator = reference.New(cfg.ValidatorURL, cfg.ValidatorSkip, cfg.ValidatorTimeout)
	if !cfg.ValidatorSkip {
		validator = reference.NewCached(validator, redisClient.Client, cfg.ValidatorCacheTTL)
	}

	events := registry.NewService(eventStore, validator, &queueNotifier{q: q}, 2*cfg.ValidatorTimeout)
	adSvc := ads.NewService(catalog)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := cfg.StoreBackend != "postgres" || db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Session issue: the caller asserts an identity and role; real identity
	// verification lives outside this service.
	r.POST("/v1/sessions", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Role   string `json:"role" binding:"required,oneof=student organizer business"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := auth.Issue(req.UserID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	// Profile surface: any authenticated user maintains their own profile.
	// Organizer saves also record the channel preference the notification
	// worker resolves; student interests feed ad targeting at render time.
	authed := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.PUT("/profile", func(c *gin.Context) {
		var req struct {
			Name      string              `json:"name" binding:"required"`
			Student   *user.StudentData   `json:"student"`
			Organizer *user.OrganizerData `json:"organizer"`
			Business  *user.BusinessData  `json:"business"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := mustClaims(c)
		u := user.User{
			ID:        claims.Subject,
			Name:      req.Name,
			Role:      user.Role(claims.Role),
			Student:   req.Student,
			Organizer: req.Organizer,
			Business:  req.Business,
			CreatedAt: time.Now().UTC(),
		}
		if existing, err := profiles.Get(c.Request.Context(), claims.Subject); err == nil {
			u.CreatedAt = existing.CreatedAt
		}
		if err := u.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := profiles.Save(c.Request.Context(), u); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, u)
	})

	authed.GET("/profile", func(c *gin.Context) {
		claims := mustClaims(c)
		u, err := profiles.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, u)
	})

	organizers := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, string(user.RoleOrganizer)))

	organizers.POST("/events", func(c *gin.Context) {
		var req struct {
			Name        string                `json:"name" binding:"required"`
			Description string                `json:"description"`
			StartsAt    time.Time             `json:"starts_at"`
			Capacity    int                   `json:"capacity"`
			References  []reference.Reference `json:"references"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := mustClaims(c)
		evt, err := events.CreateEvent(c.Request.Context(), registry.Event{
			OrganizerID: claims.Subject,
			Name:        req.Name,
			Description: req.Description,
			StartsAt:    req.StartsAt,
			Capacity:    req.Capacity,
			References:  req.References,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, evt)
	})

	organizers.POST("/events/:id/publish", func(c *gin.Context) {
		evt, err := events.Publish(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, msg := registryStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, evt)
	})

	organizers.POST("/events/:id/cancel", func(c *gin.Context) {
		if err := events.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			status, msg := registryStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	})

	organizers.GET("/events/:id/registrations", func(c *gin.Context) {
		regs, err := events.ListAttendees(c.Request.Context(), c.Param("id"))
		if err != nil {
			status, msg := registryStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"registrations": regs})
	})

	students := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, string(user.RoleStudent)))

	students.POST("/events/:id/registrations", func(c *gin.Context) {
		claims := mustClaims(c)
		result, err := events.Register(c.Request.Context(), c.Param("id"), claims.Subject)
		if err != nil {
			status, msg := registryStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	businesses := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, string(user.RoleBusiness)))

	businesses.POST("/ads", func(c *gin.Context) {
		var req struct {
			Title          string            `json:"title" binding:"required"`
			TargetCriteria map[string]string `json:"target_criteria"`
			Budget         float64           `json:"budget"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := mustClaims(c)
		ad, err := adSvc.CreateAd(c.Request.Context(), ads.Ad{
			BusinessID:     claims.Subject,
			Title:          req.Title,
			TargetCriteria: req.TargetCriteria,
			Budget:         req.Budget,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, ad)
	})

	businesses.POST("/ads/:id/deactivate", func(c *gin.Context) {
		if err := adSvc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, ads.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "inactive"})
	})

	// Calendar render: published events plus the ad placement for this
	// viewer. Targeting interests come from the authenticated student's
	// stored profile; interest.<key>=<value> query params override them,
	// and are all an anonymous viewer has.
	r.GET("/v1/calendar", func(c *gin.Context) {
		published, err := events.ListPublished(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var profile *user.User
		if claims, ok := bearerClaims(c, cfg); ok && claims.Role == string(user.RoleStudent) {
			if p, err := profiles.Get(c.Request.Context(), claims.Subject); err == nil {
				profile = p
			}
		}
		overrides := make(map[string]string)
		for key, vals := range c.Request.URL.Query() {
			if len(vals) > 0 && strings.HasPrefix(key, "interest.") {
				overrides[strings.TrimPrefix(key, "interest.")] = vals[0]
			}
		}
		placed, err := adSvc.PlaceAds(c.Request.Context(), ads.Calendar{
			EventCount:    len(published),
			UserInterests: user.MergeInterests(profile, overrides),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": published, "ads": placed})
	})

	// View tracking is fire-and-forget: always 202, errors stay server-side.
	r.POST("/v1/ads/:id/views", func(c *gin.Context) {
		adSvc.TrackView(c.Request.Context(), c.Param("id"))
		c.Status(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func mustClaims(c *gin.Context) auth.Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims
}

// bearerClaims parses an optional bearer token on routes that serve both
// anonymous and authenticated viewers.
func bearerClaims(c *gin.Context, cfg config.App) (auth.Claims, bool) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return auth.Claims{}, false
	}
	claims, err := auth.Parse(strings.TrimSpace(authz[len("bearer "):]), cfg.JWTSigningKey, cfg.JWTIssuer)
	if err != nil {
		return auth.Claims{}, false
	}
	return claims, true
}

// registryStatus maps registry errors onto the HTTP contract: missing
// student identity 400, missing event 404, lifecycle violation 403,
// duplicate 409, failed reference 422, and an unreachable validator 503 so
// callers know a retry may succeed.
func registryStatus(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrMissingStudent):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, registry.ErrInvalidState), errors.Is(err, registry.ErrEventFull):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, registry.ErrDuplicateRegistration):
		return http.StatusConflict, err.Error()
	case errors.Is(err, registry.ErrValidatorUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, registry.ErrReferenceInvalid):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
