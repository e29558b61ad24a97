package survey

import (
	"strconv"
	"strings"
	"time"
)

// UserID identifies the person a completion set belongs to. The zero value means
// "no identity": nothing is hidden locally and nothing is marked.
type UserID string

// UserIDFromTelegram converts a Telegram user id into a UserID.
func UserIDFromTelegram(id int64) UserID {
	if id == 0 {
		return ""
	}
	return UserID(strconv.FormatInt(id, 10))
}

func (u UserID) IsZero() bool {
	return strings.TrimSpace(string(u)) == ""
}

func (u UserID) String() string {
	return string(u)
}

// Metadata is catalog bookkeeping shown to the user; it never affects identity.
type Metadata struct {
	Status          string    `json:"status"`
	SubmissionCount int       `json:"submission_count"`
	IsClosed        bool      `json:"is_closed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Survey is one entry of the form catalog.
type Survey struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Language    Language `json:"language,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// DetectedLanguage returns the explicit language tag when present, otherwise
// guesses it from the display name.
func (s Survey) DetectedLanguage(fallback Language) Language {
	if s.Language != "" {
		return NormalizeLanguage(string(s.Language), fallback)
	}
	return DetectLanguage(s.DisplayName, fallback)
}

// DisplayInfo carries the localized lines rendered next to a survey.
type DisplayInfo struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// ResolvedSurvey is a survey that survived resolution, ready for display.
type ResolvedSurvey struct {
	Survey
	DisplayInfo DisplayInfo `json:"display_info"`
}
