package survey

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// freshFor controls how long after creation a survey is labelled as new.
const freshFor = 7 * 24 * time.Hour

var translations = map[Language]map[string]string{
	LanguageRU: {
		"survey.reward":    "🎁 Награда: %s %s",
		"survey.responses": "👥 Уже прошли: %d",
		"survey.new":       "🆕 Новый опрос",
		"survey.untitled":  "Опрос без названия",
	},
	LanguageUZ: {
		"survey.reward":    "🎁 Mukofot: %s %s",
		"survey.responses": "👥 Allaqachon o'tganlar: %d",
		"survey.new":       "🆕 Yangi so'rovnoma",
		"survey.untitled":  "Nomsiz so'rovnoma",
	},
}

// T returns the string for key in lang, falling back to Russian and then to the key itself.
func T(lang Language, key string) string {
	if m, ok := translations[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations[DefaultLanguage][key]; ok {
		return v
	}
	return key
}

// Rewards describes the payout advertised for each survey.
type Rewards struct {
	Default   int64
	Currency  string
	PerSurvey map[string]int64
}

// AmountFor returns the payout for surveyID, or the default when none is configured.
func (r Rewards) AmountFor(surveyID string) int64 {
	if amount, ok := r.PerSurvey[surveyID]; ok {
		return amount
	}
	return r.Default
}

// Describe builds the localized display lines for s.
func Describe(s Survey, lang Language, rewards Rewards, now time.Time) DisplayInfo {
	title := strings.TrimSpace(s.DisplayName)
	if title == "" {
		title = T(lang, "survey.untitled")
	}

	lines := make([]string, 0, 3)
	if amount := rewards.AmountFor(s.ID); amount > 0 {
		lines = append(lines, fmt.Sprintf(T(lang, "survey.reward"), formatAmount(amount), rewards.Currency))
	}
	if s.Metadata.SubmissionCount > 0 {
		lines = append(lines, fmt.Sprintf(T(lang, "survey.responses"), s.Metadata.SubmissionCount))
	}
	if !s.Metadata.CreatedAt.IsZero() && now.Sub(s.Metadata.CreatedAt) < freshFor {
		lines = append(lines, T(lang, "survey.new"))
	}

	return DisplayInfo{Title: title, Lines: lines}
}

// formatAmount groups thousands with spaces: 15000 -> "15 000".
func formatAmount(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
