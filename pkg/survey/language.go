package survey

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

type Language string

const (
	LanguageRU Language = "ru"
	LanguageUZ Language = "uz"

	DefaultLanguage = LanguageRU
)

// SupportedLanguages lists the languages the catalog is published in.
var SupportedLanguages = []Language{LanguageRU, LanguageUZ}

// NormalizeLanguage reduces a BCP 47 tag ("ru-RU", "uz-Latn") to its base
// language. Empty input yields fallback.
func NormalizeLanguage(raw string, fallback Language) Language {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return Language(strings.ToLower(raw))
	}
	base, _ := tag.Base()
	return Language(base.String())
}

// DetectLanguage guesses the language of a survey title: any Cyrillic letter
// means Russian, Latin letters only mean Uzbek, no letters means fallback.
func DetectLanguage(text string, fallback Language) Language {
	sawLatin := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			return LanguageRU
		case unicode.Is(unicode.Latin, r):
			sawLatin = true
		}
	}
	if sawLatin {
		return LanguageUZ
	}
	return fallback
}

// IsSupported reports whether lang is one of SupportedLanguages.
func IsSupported(lang Language) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
