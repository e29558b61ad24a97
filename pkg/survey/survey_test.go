package survey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Language
	}{
		{"cyrillic", "Опрос о покупках", LanguageRU},
		{"latin", "Xaridlar haqida so'rovnoma", LanguageUZ},
		{"mixed prefers cyrillic", "Survey / Опрос", LanguageRU},
		{"digits only", "2024", DefaultLanguage},
		{"empty", "", DefaultLanguage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectLanguage(tc.text, DefaultLanguage))
		})
	}
}

func TestDetectLanguageUsesFallbackForAmbiguousText(t *testing.T) {
	assert.Equal(t, LanguageUZ, DetectLanguage("   ", LanguageUZ))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, LanguageRU, NormalizeLanguage("ru-RU", LanguageUZ))
	assert.Equal(t, LanguageUZ, NormalizeLanguage("uz-Latn-UZ", LanguageRU))
	assert.Equal(t, LanguageRU, NormalizeLanguage("RU", LanguageUZ))
	assert.Equal(t, Language("en"), NormalizeLanguage("en-US", LanguageRU))
	assert.Equal(t, LanguageUZ, NormalizeLanguage("", LanguageUZ))
}

func TestSurveyDetectedLanguagePrefersExplicitTag(t *testing.T) {
	s := Survey{ID: "a", DisplayName: "Опрос", Language: "uz"}
	assert.Equal(t, LanguageUZ, s.DetectedLanguage(DefaultLanguage))

	s.Language = ""
	assert.Equal(t, LanguageRU, s.DetectedLanguage(DefaultLanguage))
}

func TestUserIDFromTelegram(t *testing.T) {
	assert.Equal(t, UserID("42"), UserIDFromTelegram(42))
	assert.True(t, UserIDFromTelegram(0).IsZero())
	assert.True(t, UserID("  ").IsZero())
}

func TestDescribeLocalizesLines(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Survey{
		ID:          "form-1",
		DisplayName: "Xaridlar",
		Metadata: Metadata{
			SubmissionCount: 12,
			CreatedAt:       now.Add(-48 * time.Hour),
		},
	}
	rewards := Rewards{Default: 5000, Currency: "UZS", PerSurvey: map[string]int64{"form-1": 15000}}

	info := Describe(s, LanguageUZ, rewards, now)

	assert.Equal(t, "Xaridlar", info.Title)
	assert.Equal(t, []string{
		"🎁 Mukofot: 15 000 UZS",
		"👥 Allaqachon o'tganlar: 12",
		"🆕 Yangi so'rovnoma",
	}, info.Lines)
}

func TestDescribeSkipsEmptyLines(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Survey{ID: "old", Metadata: Metadata{CreatedAt: now.Add(-30 * 24 * time.Hour)}}

	info := Describe(s, LanguageRU, Rewards{}, now)

	assert.Equal(t, "Опрос без названия", info.Title)
	assert.Empty(t, info.Lines)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "500", formatAmount(500))
	assert.Equal(t, "1 000", formatAmount(1000))
	assert.Equal(t, "15 000", formatAmount(15000))
	assert.Equal(t, "1 234 567", formatAmount(1234567))
}

func TestTFallsBackToRussianThenKey(t *testing.T) {
	assert.Equal(t, "🆕 Новый опрос", T("en", "survey.new"))
	assert.Equal(t, "missing.key", T(LanguageUZ, "missing.key"))
}
