package fsm

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/botport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/state"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// Resolver produces the survey list shown to a user.
type Resolver interface {
	Resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error)
}

// Handler dispatches Telegram updates to the survey menu.
type Handler struct {
	bot      botport.BotPort
	store    *state.Store
	resolver Resolver
	linkBase string
	wg       sync.WaitGroup
}

// NewHandler builds a Handler. linkBase is the public form URL prefix; when
// empty, survey buttons show details in chat instead of linking out.
func NewHandler(botPort botport.BotPort, store *state.Store, resolver Resolver, linkBase string) *Handler {
	return &Handler{
		bot:      botPort,
		store:    store,
		resolver: resolver,
		linkBase: strings.TrimRight(linkBase, "/"),
	}
}

// Wait blocks until every background resolve started by the handler has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var chatID int64
	var from *tgbotapi.User

	switch {
	case update.Message != nil:
		if update.Message.From == nil || update.Message.Chat == nil {
			log.Printf("[HandleUpdate] Warning: message without sender or chat")
			return
		}
		from = update.Message.From
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Chat == nil {
			log.Printf("[HandleUpdate] Warning: callback without sender, message or chat")
			return
		}
		from = update.CallbackQuery.From
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return
	}

	userName := from.FirstName
	if from.LastName != "" {
		userName += " " + from.LastName
	}

	userState := h.store.GetOrCreateUserState(from.ID, chatID, userName)
	if userState == nil {
		log.Printf("[HandleUpdate] Error: failed to get or create user state for user %d", from.ID)
		_, _ = h.bot.SendMessage(ctx, chatID, tr(survey.DefaultLanguage, "internal.error"), nil)
		return
	}

	userState.Mu.Lock()
	defer userState.Mu.Unlock()

	if update.Message != nil {
		h.handleMessage(ctx, update.Message, userState)
	} else {
		h.handleCallbackQuery(ctx, update.CallbackQuery, userState)
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message, userState *state.UserState) {
	lang := userState.Language

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			h.start(ctx, userState)
		case "lang":
			h.chooseLanguage(ctx, userState)
		case "surveys":
			h.showSurveys(ctx, userState)
		default:
			_, _ = h.bot.SendMessage(ctx, userState.ChatID, tr(lang, "unknown.command"), nil)
		}
		return
	}

	switch {
	case isButton(message.Text, "button.surveys"):
		h.showSurveys(ctx, userState)
	case isButton(message.Text, "button.language"):
		h.chooseLanguage(ctx, userState)
	default:
		_, _ = h.bot.SendMessage(ctx, userState.ChatID, tr(lang, "use.buttons"), nil)
	}
}

func (h *Handler) start(ctx context.Context, userState *state.UserState) {
	userState.CancelResolve()
	userState.LastMessageID = 0
	userState.ListOffset = 0

	welcome := fmt.Sprintf(tr(userState.Language, "menu.welcome"), userState.UserName)
	_, _ = h.bot.SendMessage(ctx, userState.ChatID, welcome, nil)

	if current := userState.MenuFSM.Current(); current != StateIdle {
		log.Printf("[start] User %d used /start, resetting menu from %s to idle", userState.UserID, current)
		if err := userState.MenuFSM.Event(ctx, EventBackToIdle, userState, h.bot); err != nil {
			log.Printf("[start] Error triggering EventBackToIdle for user %d: %v. Forcing idle.", userState.UserID, err)
			userState.MenuFSM.SetState(StateIdle)
			sendMainMenu(ctx, h.bot, userState)
		}
	} else {
		sendMainMenu(ctx, h.bot, userState)
	}

	if !userState.LanguageChosen {
		h.chooseLanguage(ctx, userState)
	}
}

func (h *Handler) chooseLanguage(ctx context.Context, userState *state.UserState) {
	err := userState.MenuFSM.Event(ctx, EventChooseLanguage, userState, h.bot)
	if err == nil {
		return
	}
	if userState.MenuFSM.Current() == StateChoosingLanguage {
		// Already choosing: the callback did not fire, so prompt again.
		sendLanguagePrompt(ctx, h.bot, userState)
		return
	}
	log.Printf("[chooseLanguage] Error triggering EventChooseLanguage for user %d: %v", userState.UserID, err)
}

// showSurveys replaces any open list with a fresh one in the user's language.
func (h *Handler) showSurveys(ctx context.Context, userState *state.UserState) {
	if userState.MenuFSM.Current() != StateViewingSurveys {
		if err := userState.MenuFSM.Event(ctx, EventViewSurveys, userState, h.bot); err != nil && !isNoTransitionError(err) {
			log.Printf("[showSurveys] Error triggering EventViewSurveys for user %d: %v", userState.UserID, err)
			return
		}
	}
	h.deleteListMessage(ctx, userState, 0)
	userState.ListOffset = 0

	msg, err := h.bot.SendMessage(ctx, userState.ChatID, tr(userState.Language, "list.loading"), nil)
	if err != nil {
		log.Printf("[showSurveys] Error sending loading message for user %d: %v", userState.UserID, err)
		return
	}
	userState.LastMessageID = msg.MessageID
	h.startResolve(ctx, userState, msg.MessageID)
}

// startResolve runs a resolve in the background and renders it into messageID
// unless a newer resolve or a navigation has superseded it. The caller holds userState.Mu.
func (h *Handler) startResolve(ctx context.Context, userState *state.UserState, messageID int) {
	resolveCtx, gen := userState.BeginResolve(ctx)
	userID := userState.Identity()
	lang := userState.Language

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		surveys, err := h.resolver.Resolve(resolveCtx, userID, lang)

		userState.Mu.Lock()
		defer userState.Mu.Unlock()
		if !userState.FinishResolve(gen) {
			log.Printf("[startResolve] Discarding superseded resolve #%d for user %d (lang %s)", gen, userState.UserID, lang)
			return
		}
		if err != nil {
			log.Printf("[startResolve] Resolve failed for user %d (lang %s): %v", userState.UserID, lang, err)
			h.renderListError(ctx, userState, messageID)
			return
		}
		userState.Surveys = surveys
		h.renderSurveyList(ctx, userState, messageID)
	}()
}

// deleteListMessage removes the open list message unless it is keepID.
func (h *Handler) deleteListMessage(ctx context.Context, userState *state.UserState, keepID int) {
	old := userState.LastMessageID
	userState.LastMessageID = 0
	if old == 0 || old == keepID {
		return
	}
	if err := h.bot.DeleteMessage(ctx, userState.ChatID, old); err != nil && !botport.IsCode(err, botport.CodeMessageNotFound) {
		log.Printf("[deleteListMessage] Error deleting list message %d for user %d: %v", old, userState.UserID, err)
	}
}

func (h *Handler) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery, userState *state.UserState) {
	messageID := query.Message.MessageID
	notice := ""
	defer func() {
		if err := h.bot.AnswerCallback(ctx, query.ID, notice); err != nil {
			log.Printf("[handleCallbackQuery] Error answering callback %s for user %d: %v", query.ID, userState.UserID, err)
		}
	}()

	parts := strings.SplitN(query.Data, ":", 2)
	prefix := parts[0] + ":"
	value := ""
	if len(parts) > 1 {
		value = parts[1]
	}

	log.Printf("[handleCallbackQuery] Received callback: Prefix='%s', Value='%s', UserID=%d, State=%s",
		prefix, value, userState.UserID, userState.MenuFSM.Current())

	switch prefix {
	case CallbackLanguagePrefix:
		h.languageSelected(ctx, userState, survey.Language(value), messageID)

	case CallbackListNavPrefix:
		if userState.MenuFSM.Current() != StateViewingSurveys {
			notice = tr(userState.Language, "list.unavailable")
			return
		}
		switch value {
		case NavNext:
			userState.ListOffset += pageSize
			h.renderSurveyList(ctx, userState, messageID)
		case NavBack:
			userState.ListOffset -= pageSize
			h.renderSurveyList(ctx, userState, messageID)
		case NavRefresh:
			_, _ = h.bot.EditMessage(ctx, userState.ChatID, messageID, tr(userState.Language, "list.loading"), nil)
			userState.LastMessageID = messageID
			h.startResolve(ctx, userState, messageID)
		case NavToMenu:
			userState.CancelResolve()
			userState.LastMessageID = 0
			emptyKeyboard := &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
			if _, err := h.bot.EditMessage(ctx, userState.ChatID, messageID, query.Message.Text, emptyKeyboard); err != nil && !botport.IsCode(err, botport.CodeMessageNotModified) {
				log.Printf("[handleCallbackQuery] Error removing inline keyboard from list message %d: %v", messageID, err)
			}
			if err := userState.MenuFSM.Event(ctx, EventBackToIdle, userState, h.bot); err != nil {
				log.Printf("[handleCallbackQuery] Error triggering EventBackToIdle for user %d: %v", userState.UserID, err)
			}
		default:
			log.Printf("[handleCallbackQuery] Unknown list navigation action '%s' from user %d", value, userState.UserID)
		}

	case CallbackSurveyPrefix:
		notice = h.showSurveyDetails(ctx, userState, value)

	default:
		log.Printf("[handleCallbackQuery] Unknown callback prefix '%s' from user %d", prefix, userState.UserID)
	}
}

func (h *Handler) languageSelected(ctx context.Context, userState *state.UserState, raw survey.Language, promptID int) {
	lang := survey.NormalizeLanguage(string(raw), userState.Language)
	if !survey.IsSupported(lang) {
		log.Printf("[languageSelected] User %d picked unsupported language '%s'", userState.UserID, raw)
		return
	}
	log.Printf("[languageSelected] User %d switched language %s -> %s", userState.UserID, userState.Language, lang)
	userState.Language = lang
	userState.LanguageChosen = true

	empty := &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := h.bot.EditMessage(ctx, userState.ChatID, promptID, tr(lang, "lang.chosen"), empty); err != nil && !botport.IsCode(err, botport.CodeMessageNotModified) {
		log.Printf("[languageSelected] Error editing language prompt %d: %v", promptID, err)
	}

	switch userState.MenuFSM.Current() {
	case StateChoosingLanguage:
		if err := userState.MenuFSM.Event(ctx, EventLanguageChosen, userState, h.bot); err != nil {
			log.Printf("[languageSelected] Error triggering EventLanguageChosen for user %d: %v", userState.UserID, err)
		}
	case StateIdle:
		if err := userState.MenuFSM.Event(ctx, EventViewSurveys, userState, h.bot); err != nil {
			log.Printf("[languageSelected] Error triggering EventViewSurveys for user %d: %v", userState.UserID, err)
		}
	}
	// The previous list is in the old language; showSurveys deletes it and
	// supersedes its resolve.
	h.showSurveys(ctx, userState)
}

func (h *Handler) showSurveyDetails(ctx context.Context, userState *state.UserState, surveyID string) string {
	for _, s := range userState.Surveys {
		if s.ID != surveyID {
			continue
		}
		text := s.DisplayInfo.Title
		if len(s.DisplayInfo.Lines) > 0 {
			text += "\n" + strings.Join(s.DisplayInfo.Lines, "\n")
		}
		_, _ = h.bot.SendMessage(ctx, userState.ChatID, text, nil)
		return ""
	}
	return tr(userState.Language, "survey.gone")
}

// Refresh applies a re-resolution produced outside the chat (for example after
// a submission) to the user's open list. Results for another language, a
// closed list or a failed resolve are ignored.
func (h *Handler) Refresh(ctx context.Context, userID survey.UserID, lang survey.Language, surveys []survey.ResolvedSurvey, err error) {
	telegramID, parseErr := strconv.ParseInt(userID.String(), 10, 64)
	if parseErr != nil {
		return
	}
	userState, ok := h.store.Lookup(telegramID)
	if !ok {
		return
	}

	userState.Mu.Lock()
	defer userState.Mu.Unlock()
	if err != nil {
		log.Printf("[Refresh] Keeping current list for user %d after failed refresh: %v", telegramID, err)
		return
	}
	if userState.MenuFSM.Current() != StateViewingSurveys || userState.Language != lang || userState.LastMessageID == 0 {
		return
	}
	userState.Surveys = surveys
	h.renderSurveyList(ctx, userState, userState.LastMessageID)
}
