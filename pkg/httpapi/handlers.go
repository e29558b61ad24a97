package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dkalashnik/survey-rewards-bot/pkg/availability"
	"github.com/dkalashnik/survey-rewards-bot/pkg/coordinator"
	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

type submitRequest struct {
	Answers  map[string]any `json:"answers"`
	Language string         `json:"language"`
}

type webhookRequest struct {
	FormID       string `json:"form_id"`
	RespondentID string `json:"respondent_id"`
	Language     string `json:"language"`
}

func (s *Server) language(raw string) (survey.Language, bool) {
	lang := survey.NormalizeLanguage(raw, s.opts.DefaultLanguage)
	return lang, survey.IsSupported(lang)
}

func identity(c *gin.Context) survey.UserID {
	return survey.UserID(strings.TrimSpace(c.GetHeader(headerUserID)))
}

func (s *Server) listSurveys(c *gin.Context) {
	lang, ok := s.language(c.Query("lang"))
	if !ok {
		respondError(c, http.StatusBadRequest, "unsupported_language", "unsupported language "+string(lang))
		return
	}
	userID := identity(c)

	surveys, err := s.resolver.Resolve(c.Request.Context(), userID, lang)
	if err != nil {
		s.logger.Printf("[listSurveys] resolve for user %q lang %s failed: %v", userID, lang, err)
		if errors.Is(err, availability.ErrCatalogUnavailable) {
			respondError(c, http.StatusBadGateway, "catalog_unavailable", "survey catalog is unavailable")
			return
		}
		respondError(c, http.StatusServiceUnavailable, "resolve_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"language": lang,
		"count":    len(surveys),
		"surveys":  surveys,
	})
}

func (s *Server) submitResponse(c *gin.Context) {
	surveyID := c.Param("id")
	userID := identity(c)
	if userID.IsZero() {
		respondError(c, http.StatusBadRequest, "missing_identity", headerUserID+" header is required")
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	lang, ok := s.language(req.Language)
	if !ok {
		respondError(c, http.StatusBadRequest, "unsupported_language", "unsupported language "+string(lang))
		return
	}

	resp, err := s.coordinator.Submit(c.Request.Context(), userID, surveyID, req.Answers, lang)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"response": resp})
	case errors.Is(err, coordinator.ErrAlreadyCompleted):
		respondError(c, http.StatusConflict, "already_completed", "survey already completed")
	case formport.IsCode(err, formport.CodeNotFound):
		respondError(c, http.StatusNotFound, formport.CodeNotFound, "survey not found")
	default:
		code := formport.CodeOf(err)
		if code == "" {
			code = formport.CodeUnknown
		}
		respondError(c, http.StatusBadGateway, code, "form service rejected the submission")
	}
}

// submissionWebhook is called by the form service after a respondent submits.
func (s *Server) submissionWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	req.FormID = strings.TrimSpace(req.FormID)
	req.RespondentID = strings.TrimSpace(req.RespondentID)
	if req.FormID == "" || req.RespondentID == "" {
		respondError(c, http.StatusBadRequest, "bad_request", "form_id and respondent_id are required")
		return
	}
	lang := survey.NormalizeLanguage(req.Language, s.opts.DefaultLanguage)

	s.coordinator.OnSubmitted(c.Request.Context(), survey.UserID(req.RespondentID), req.FormID, lang)
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (s *Server) listGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": s.groups.Groups()})
}

func (s *Server) listCompletions(c *gin.Context) {
	userID := survey.UserID(c.Param("uid"))
	completed := s.store.ListCompleted(c.Request.Context(), userID)
	if completed == nil {
		completed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "completions": completed})
}

func (s *Server) clearCompletions(c *gin.Context) {
	userID := survey.UserID(c.Param("uid"))
	s.store.ClearAll(c.Request.Context(), userID)
	s.logger.Printf("[clearCompletions] cleared completions for user %s", userID)
	c.Status(http.StatusNoContent)
}

func (s *Server) resetSurvey(c *gin.Context) {
	s.coordinator.Reset(c.Request.Context(), survey.UserID(c.Param("uid")), c.Param("sid"))
	c.Status(http.StatusNoContent)
}

func (s *Server) resetGroup(c *gin.Context) {
	groupID := c.Param("gid")
	if len(s.groups.MembersOf(groupID)) == 0 {
		respondError(c, http.StatusNotFound, "unknown_group", "unknown group "+groupID)
		return
	}
	s.coordinator.ResetGroup(c.Request.Context(), survey.UserID(c.Param("uid")), groupID)
	c.Status(http.StatusNoContent)
}
