package fsm

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/looplab/fsm"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/botport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/state"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// NewMenuFSM builds the per-user menu machine. Event args are
// (*state.UserState, botport.BotPort).
func NewMenuFSM(initialState string) *fsm.FSM {
	callbacks := fsm.Callbacks{
		"enter_" + StateChoosingLanguage: enterChoosingLanguage,
		"enter_" + StateIdle:             enterIdle,
	}

	events := fsm.Events{
		{Name: EventChooseLanguage, Src: []string{StateIdle, StateViewingSurveys}, Dst: StateChoosingLanguage},
		{Name: EventLanguageChosen, Src: []string{StateChoosingLanguage}, Dst: StateViewingSurveys},
		{Name: EventViewSurveys, Src: []string{StateIdle, StateChoosingLanguage}, Dst: StateViewingSurveys},
		{Name: EventBackToIdle, Src: []string{StateChoosingLanguage, StateViewingSurveys}, Dst: StateIdle},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}

func eventArgs(e *fsm.Event) (*state.UserState, botport.BotPort, bool) {
	if len(e.Args) < 2 {
		log.Printf("[eventArgs] not enough arguments for event %s (got %d)", e.Event, len(e.Args))
		return nil, nil, false
	}
	userState, okS := e.Args[0].(*state.UserState)
	botPort, okB := e.Args[1].(botport.BotPort)
	if !okS || !okB || userState == nil {
		log.Printf("[eventArgs] bad arguments for event %s", e.Event)
		return nil, nil, false
	}
	return userState, botPort, true
}

func enterChoosingLanguage(ctx context.Context, e *fsm.Event) {
	userState, botPort, ok := eventArgs(e)
	if !ok {
		return
	}
	sendLanguagePrompt(ctx, botPort, userState)
}

func enterIdle(ctx context.Context, e *fsm.Event) {
	userState, botPort, ok := eventArgs(e)
	if !ok {
		return
	}
	sendMainMenu(ctx, botPort, userState)
}

func sendMainMenu(ctx context.Context, botPort botport.BotPort, userState *state.UserState) {
	lang := userState.Language
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(tr(lang, "button.surveys")),
			tgbotapi.NewKeyboardButton(tr(lang, "button.language")),
		),
	)
	if _, err := botPort.SendMessage(ctx, userState.ChatID, tr(lang, "menu.choose"), keyboard); err != nil {
		log.Printf("[sendMainMenu] Error sending main menu for user %d: %v", userState.UserID, err)
	}
}

func sendLanguagePrompt(ctx context.Context, botPort botport.BotPort, userState *state.UserState) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(languageLabels))
	for _, l := range languageLabels {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(l.Label, CallbackLanguagePrefix+string(l.Lang)))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(row)
	if _, err := botPort.SendMessage(ctx, userState.ChatID, tr(userState.Language, "lang.prompt"), keyboard); err != nil {
		log.Printf("[sendLanguagePrompt] Error sending language prompt for user %d: %v", userState.UserID, err)
	}
}

// renderSurveyList shows the current page of userState.Surveys. A zero
// messageID sends a new message and remembers it as the list message.
func (h *Handler) renderSurveyList(ctx context.Context, userState *state.UserState, messageID int) {
	lang := userState.Language
	total := len(userState.Surveys)

	var text string
	var keyboard tgbotapi.InlineKeyboardMarkup
	if total == 0 {
		userState.ListOffset = 0
		text = tr(lang, "list.empty")
		keyboard = tgbotapi.NewInlineKeyboardMarkup(footerRow(lang))
	} else {
		start := clampOffset(userState.ListOffset, total)
		userState.ListOffset = start
		end := start + pageSize
		if end > total {
			end = total
		}

		var builder strings.Builder
		builder.WriteString(fmt.Sprintf(tr(lang, "list.header"), start+1, end, total))
		builder.WriteString("\n\n")
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+2)
		for i := start; i < end; i++ {
			s := userState.Surveys[i]
			builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, s.DisplayInfo.Title))
			for _, line := range s.DisplayInfo.Lines {
				builder.WriteString("   " + line + "\n")
			}
			builder.WriteString("\n")
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(h.surveyButton(userState, i+1, s)))
		}
		if nav := navigationRow(lang, start > 0, end < total); len(nav) > 0 {
			rows = append(rows, nav)
		}
		rows = append(rows, footerRow(lang))

		text = strings.TrimRight(builder.String(), "\n")
		keyboard = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	h.showList(ctx, userState, messageID, text, keyboard)
}

func (h *Handler) renderListError(ctx context.Context, userState *state.UserState, messageID int) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(footerRow(userState.Language))
	h.showList(ctx, userState, messageID, tr(userState.Language, "list.error"), keyboard)
}

func (h *Handler) showList(ctx context.Context, userState *state.UserState, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if messageID != 0 {
		_, err := h.bot.EditMessage(ctx, userState.ChatID, messageID, text, &keyboard)
		if err == nil || botport.IsCode(err, botport.CodeMessageNotModified) {
			userState.LastMessageID = messageID
			return
		}
		log.Printf("[showList] Error editing list %d for user %d, sending a new one: %v", messageID, userState.UserID, err)
	}
	msg, err := h.bot.SendMessage(ctx, userState.ChatID, text, keyboard)
	if err != nil {
		log.Printf("[showList] Error sending list for user %d: %v", userState.UserID, err)
		return
	}
	userState.LastMessageID = msg.MessageID
}

func (h *Handler) surveyButton(userState *state.UserState, n int, s survey.ResolvedSurvey) tgbotapi.InlineKeyboardButton {
	label := fmt.Sprintf("%d. %s", n, truncateString(s.DisplayInfo.Title, 40))
	if link := h.surveyLink(userState.Identity(), s.ID); link != "" {
		return tgbotapi.NewInlineKeyboardButtonURL(label, link)
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, CallbackSurveyPrefix+s.ID)
}

// surveyLink returns the respondent-specific form URL, or "" when no link base is configured.
func (h *Handler) surveyLink(userID survey.UserID, surveyID string) string {
	if h.linkBase == "" {
		return ""
	}
	link := h.linkBase + "/" + url.PathEscape(surveyID)
	if !userID.IsZero() {
		link += "?respondent_id=" + url.QueryEscape(userID.String())
	}
	return link
}

func navigationRow(lang survey.Language, hasPrev, hasNext bool) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{}
	if hasPrev {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(tr(lang, "list.back"), CallbackListNavPrefix+NavBack))
	}
	if hasNext {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(tr(lang, "list.next"), CallbackListNavPrefix+NavNext))
	}
	return row
}

func footerRow(lang survey.Language) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(tr(lang, "list.refresh"), CallbackListNavPrefix+NavRefresh),
		tgbotapi.NewInlineKeyboardButtonData(tr(lang, "list.tomenu"), CallbackListNavPrefix+NavToMenu),
	)
}

func clampOffset(offset, total int) int {
	if offset < 0 || total == 0 {
		return 0
	}
	if offset >= total {
		return ((total - 1) / pageSize) * pageSize
	}
	return offset - offset%pageSize
}
