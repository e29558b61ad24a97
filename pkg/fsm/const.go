package fsm

import "github.com/dkalashnik/survey-rewards-bot/pkg/survey"

const (
	StateIdle             = "idle"
	StateChoosingLanguage = "choosing_language"
	StateViewingSurveys   = "viewing_surveys"
)

const (
	EventChooseLanguage = "choose_language"
	EventLanguageChosen = "language_chosen"
	EventViewSurveys    = "view_surveys"
	EventBackToIdle     = "back_to_idle"
)

const (
	CallbackLanguagePrefix = "lang:"
	CallbackListNavPrefix  = "list_nav:"
	CallbackSurveyPrefix   = "survey:"
)

const (
	NavNext    = "next"
	NavBack    = "back"
	NavRefresh = "refresh"
	NavToMenu  = "tomenu"
)

const pageSize = 5

var texts = map[survey.Language]map[string]string{
	survey.LanguageRU: {
		"button.surveys":   "📋 Опросы",
		"button.language":  "🌐 Язык",
		"menu.welcome":     "👋 Здравствуйте, %s!\nЗдесь собраны опросы, за которые полагается вознаграждение.",
		"menu.choose":      "Выберите действие:",
		"lang.prompt":      "Выберите язык опросов:",
		"lang.chosen":      "Язык опросов: Русский",
		"list.loading":     "⏳ Загружаем доступные опросы...",
		"list.header":      "📋 Доступные опросы (%d - %d из %d):",
		"list.empty":       "Сейчас нет доступных опросов. Загляните позже!",
		"list.error":       "Не удалось загрузить опросы. Попробуйте обновить список чуть позже.",
		"list.back":        "⬅️ Назад",
		"list.next":        "Вперед ➡️",
		"list.refresh":     "🔄 Обновить",
		"list.tomenu":      "⬆️ В меню",
		"list.unavailable": "Действие недоступно.",
		"survey.gone":      "Этот опрос больше недоступен.",
		"unknown.command":  "Неизвестная команда.",
		"use.buttons":      "Пожалуйста, используйте кнопки меню.",
		"internal.error":   "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже.",
	},
	survey.LanguageUZ: {
		"button.surveys":   "📋 So'rovnomalar",
		"button.language":  "🌐 Til",
		"menu.welcome":     "👋 Assalomu alaykum, %s!\nBu yerda mukofotli so'rovnomalar jamlangan.",
		"menu.choose":      "Amalni tanlang:",
		"lang.prompt":      "So'rovnomalar tilini tanlang:",
		"lang.chosen":      "So'rovnomalar tili: O'zbekcha",
		"list.loading":     "⏳ So'rovnomalar yuklanmoqda...",
		"list.header":      "📋 Mavjud so'rovnomalar (%d - %d / %d):",
		"list.empty":       "Hozircha mavjud so'rovnomalar yo'q. Keyinroq qaytib ko'ring!",
		"list.error":       "So'rovnomalarni yuklab bo'lmadi. Birozdan keyin yangilab ko'ring.",
		"list.back":        "⬅️ Orqaga",
		"list.next":        "Oldinga ➡️",
		"list.refresh":     "🔄 Yangilash",
		"list.tomenu":      "⬆️ Menyuga",
		"list.unavailable": "Amal mavjud emas.",
		"survey.gone":      "Bu so'rovnoma endi mavjud emas.",
		"unknown.command":  "Noma'lum buyruq.",
		"use.buttons":      "Iltimos, menyu tugmalaridan foydalaning.",
		"internal.error":   "Ichki xatolik yuz berdi. Iltimos, keyinroq urinib ko'ring.",
	},
}

var languageLabels = []struct {
	Lang  survey.Language
	Label string
}{
	{survey.LanguageRU, "🇷🇺 Русский"},
	{survey.LanguageUZ, "🇺🇿 O'zbekcha"},
}

func tr(lang survey.Language, key string) string {
	if m, ok := texts[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := texts[survey.DefaultLanguage][key]; ok {
		return v
	}
	return key
}

// isButton reports whether text is the label of key in any supported language.
func isButton(text, key string) bool {
	for _, m := range texts {
		if m[key] == text {
			return true
		}
	}
	return false
}
