package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dkalashnik/survey-rewards-bot/pkg/equivalence"
	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

const (
	headerUserID        = "X-User-ID"
	headerRequestID     = "X-Request-ID"
	headerAdminToken    = "X-Admin-Token"
	headerWebhookSecret = "X-Webhook-Secret"
)

type Resolver interface {
	Resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error)
}

// Coordinator records submissions and serves the diagnostic resets.
type Coordinator interface {
	Submit(ctx context.Context, userID survey.UserID, surveyID string, answers map[string]any, lang survey.Language) (formport.Response, error)
	OnSubmitted(ctx context.Context, userID survey.UserID, surveyID string, lang survey.Language)
	Reset(ctx context.Context, userID survey.UserID, surveyID string)
	ResetGroup(ctx context.Context, userID survey.UserID, groupID string)
}

type CompletionStore interface {
	ListCompleted(ctx context.Context, userID survey.UserID) []string
	ClearAll(ctx context.Context, userID survey.UserID)
}

type GroupRegistry interface {
	Groups() []equivalence.Group
	MembersOf(groupID string) []string
}

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	DefaultLanguage survey.Language
	// AdminToken guards the diagnostics routes; empty disables them.
	AdminToken string
	// WebhookSecret guards the submission webhook; empty disables it.
	WebhookSecret string
	// RateLimit and RateBurst bound survey requests per user. Zero means 2 rps, burst 10.
	RateLimit rate.Limit
	RateBurst int
}

type Server struct {
	resolver    Resolver
	coordinator Coordinator
	store       CompletionStore
	groups      GroupRegistry
	opts        Options
	logger      Logger
	limiter     *userLimiter
}

func New(resolver Resolver, coordinator Coordinator, store CompletionStore, groups GroupRegistry, opts Options, logger Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = survey.DefaultLanguage
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	return &Server{
		resolver:    resolver,
		coordinator: coordinator,
		store:       store,
		groups:      groups,
		opts:        opts,
		logger:      logger,
		limiter:     newUserLimiter(opts.RateLimit, opts.RateBurst),
	}
}

// Router builds the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/surveys", s.rateLimit(), s.listSurveys)
	api.POST("/surveys/:id/responses", s.rateLimit(), s.submitResponse)
	api.POST("/webhooks/submissions", s.requireSecret(headerWebhookSecret, s.opts.WebhookSecret), s.submissionWebhook)

	diag := api.Group("/diagnostics", s.requireSecret(headerAdminToken, s.opts.AdminToken))
	diag.GET("/groups", s.listGroups)
	diag.GET("/users/:uid/completions", s.listCompletions)
	diag.DELETE("/users/:uid/completions", s.clearCompletions)
	diag.DELETE("/users/:uid/completions/:sid", s.resetSurvey)
	diag.DELETE("/users/:uid/groups/:gid", s.resetGroup)

	return r
}

// requestLogger tags each request with an X-Request-ID and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		start := time.Now()
		c.Next()
		s.logger.Printf("[httpapi] %s %s -> %d in %s (request %s)", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond), requestID)
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
