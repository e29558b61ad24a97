package fsm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/survey-rewards-bot/pkg/bot/fakeadapter"
	"github.com/dkalashnik/survey-rewards-bot/pkg/state"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

const testUserID int64 = 7

type stubResolver struct {
	mu    sync.Mutex
	lists map[survey.Language][]survey.ResolvedSurvey
	err   error
	gates map[survey.Language]chan struct{}
	calls []survey.Language
}

func (r *stubResolver) Resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error) {
	r.mu.Lock()
	r.calls = append(r.calls, lang)
	gate := r.gates[lang]
	list, err := r.lists[lang], r.err
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return list, err
}

func resolved(prefix string, n int) []survey.ResolvedSurvey {
	out := make([]survey.ResolvedSurvey, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		out = append(out, survey.ResolvedSurvey{
			Survey:      survey.Survey{ID: id},
			DisplayInfo: survey.DisplayInfo{Title: prefix + " title " + id, Lines: []string{"🎁 reward"}},
		})
	}
	return out
}

func newTestHandler(resolver Resolver) (*Handler, *fakeadapter.FakeAdapter, *state.Store) {
	bot := &fakeadapter.FakeAdapter{}
	store := state.NewStore(NewFSMCreator(), survey.LanguageRU)
	return NewHandler(bot, store, resolver, "https://forms.example.com/f/"), bot, store
}

func commandUpdate(text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 100,
		From:      &tgbotapi.User{ID: testUserID, FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: testUserID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 101,
		From:      &tgbotapi.User{ID: testUserID, FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: testUserID},
		Text:      text,
	}}
}

func callbackUpdate(data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: testUserID, FirstName: "Ann"},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: testUserID}, Text: "list"},
		Data:    data,
	}}
}

func userState(t *testing.T, store *state.Store) *state.UserState {
	t.Helper()
	u, ok := store.Lookup(testUserID)
	if !ok {
		t.Fatalf("expected state for user %d", testUserID)
	}
	return u
}

func keyboardOf(t *testing.T, call *fakeadapter.Call) tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	switch kb := call.Markup.(type) {
	case tgbotapi.InlineKeyboardMarkup:
		return kb
	case *tgbotapi.InlineKeyboardMarkup:
		return *kb
	default:
		t.Fatalf("expected inline keyboard, got %T", call.Markup)
		return tgbotapi.InlineKeyboardMarkup{}
	}
}

func TestStartPromptsForLanguage(t *testing.T) {
	h, bot, store := newTestHandler(&stubResolver{})
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/start"))

	u := userState(t, store)
	if u.MenuFSM.Current() != StateChoosingLanguage {
		t.Fatalf("expected choosing_language, got %s", u.MenuFSM.Current())
	}
	sends := bot.CallsFor("send_message")
	if len(sends) != 3 {
		t.Fatalf("expected welcome, menu and language prompt, got %d sends", len(sends))
	}
	if !strings.Contains(sends[0].Text, "Ann") {
		t.Fatalf("expected personalised welcome, got %q", sends[0].Text)
	}
	if _, ok := sends[1].Markup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Fatalf("expected reply keyboard on main menu, got %T", sends[1].Markup)
	}
	prompt := keyboardOf(t, &sends[2])
	if got := *prompt.InlineKeyboard[0][1].CallbackData; got != "lang:uz" {
		t.Fatalf("expected lang:uz button, got %s", got)
	}
}

func TestLanguageChoiceShowsSurveysWithPersonalLinks(t *testing.T) {
	resolver := &stubResolver{lists: map[survey.Language][]survey.ResolvedSurvey{
		survey.LanguageUZ: resolved("uz", 2),
	}}
	h, bot, store := newTestHandler(resolver)
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/start"))
	prompt := bot.LastCall("send_message")
	h.HandleUpdate(ctx, callbackUpdate("lang:uz", prompt.MessageID))
	h.Wait()

	u := userState(t, store)
	if u.Language != survey.LanguageUZ || !u.LanguageChosen {
		t.Fatalf("expected uz chosen, got %s (%v)", u.Language, u.LanguageChosen)
	}
	if u.MenuFSM.Current() != StateViewingSurveys {
		t.Fatalf("expected viewing_surveys, got %s", u.MenuFSM.Current())
	}

	list := bot.LastCall("edit_message")
	if list == nil || list.MessageID != u.LastMessageID {
		t.Fatalf("expected list rendered into message %d, got %+v", u.LastMessageID, list)
	}
	if !strings.Contains(list.Text, "uz title uz-1") || !strings.Contains(list.Text, "🎁 reward") {
		t.Fatalf("unexpected list text: %q", list.Text)
	}
	kb := keyboardOf(t, list)
	url := kb.InlineKeyboard[0][0].URL
	if url == nil || *url != "https://forms.example.com/f/uz-1?respondent_id=7" {
		t.Fatalf("unexpected survey link: %v", url)
	}
	if resolver.calls[0] != survey.LanguageUZ {
		t.Fatalf("expected uz resolve, got %v", resolver.calls)
	}
}

func TestPagination(t *testing.T) {
	resolver := &stubResolver{lists: map[survey.Language][]survey.ResolvedSurvey{
		survey.LanguageRU: resolved("ru", 7),
	}}
	h, bot, store := newTestHandler(resolver)
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/surveys"))
	h.Wait()
	u := userState(t, store)
	first := bot.LastCall("edit_message")
	if !strings.Contains(first.Text, "(1 - 5 из 7)") {
		t.Fatalf("unexpected first page: %q", first.Text)
	}
	if rows := keyboardOf(t, first).InlineKeyboard; len(rows) != 7 {
		t.Fatalf("expected 5 survey rows + nav + footer, got %d", len(rows))
	}

	h.HandleUpdate(ctx, callbackUpdate("list_nav:next", u.LastMessageID))
	second := bot.LastCall("edit_message")
	if !strings.Contains(second.Text, "(6 - 7 из 7)") || !strings.Contains(second.Text, "ru title ru-7") {
		t.Fatalf("unexpected second page: %q", second.Text)
	}

	h.HandleUpdate(ctx, callbackUpdate("list_nav:back", u.LastMessageID))
	if !strings.Contains(bot.LastCall("edit_message").Text, "(1 - 5 из 7)") {
		t.Fatalf("expected first page after back")
	}
}

func TestLanguageSwitchDiscardsStaleResolve(t *testing.T) {
	resolver := &stubResolver{
		lists: map[survey.Language][]survey.ResolvedSurvey{
			survey.LanguageRU: resolved("ru", 1),
			survey.LanguageUZ: resolved("uz", 1),
		},
		gates: map[survey.Language]chan struct{}{survey.LanguageRU: make(chan struct{})},
	}
	h, bot, store := newTestHandler(resolver)
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/surveys"))
	oldList := userState(t, store).LastMessageID
	h.HandleUpdate(ctx, commandUpdate("/lang"))
	prompt := bot.LastCall("send_message")
	h.HandleUpdate(ctx, callbackUpdate("lang:uz", prompt.MessageID))
	h.Wait()

	deletes := bot.CallsFor("delete_message")
	if len(deletes) != 1 || deletes[0].MessageID != oldList {
		t.Fatalf("expected old list %d deleted, got %+v", oldList, deletes)
	}
	for _, c := range bot.CallsFor("edit_message") {
		if strings.Contains(c.Text, "ru title") || strings.Contains(c.Text, tr(survey.LanguageRU, "list.error")) {
			t.Fatalf("stale ru resolve was rendered: %q", c.Text)
		}
	}
	if !strings.Contains(bot.LastCall("edit_message").Text, "uz title") {
		t.Fatalf("expected uz list to be rendered")
	}
}

func TestResolveErrorShowsRetry(t *testing.T) {
	h, bot, _ := newTestHandler(&stubResolver{err: errors.New("catalog down")})

	h.HandleUpdate(context.Background(), commandUpdate("/surveys"))
	h.Wait()

	last := bot.LastCall("edit_message")
	if last == nil || last.Text != tr(survey.LanguageRU, "list.error") {
		t.Fatalf("expected error text, got %+v", last)
	}
	if got := *keyboardOf(t, last).InlineKeyboard[0][0].CallbackData; got != "list_nav:refresh" {
		t.Fatalf("expected refresh button, got %s", got)
	}
}

func TestEmptyList(t *testing.T) {
	h, bot, _ := newTestHandler(&stubResolver{})

	h.HandleUpdate(context.Background(), textUpdate(tr(survey.LanguageUZ, "button.surveys")))
	h.Wait()

	if last := bot.LastCall("edit_message"); last == nil || last.Text != tr(survey.LanguageRU, "list.empty") {
		t.Fatalf("expected empty list text, got %+v", last)
	}
}

func TestRefreshUpdatesOpenListOnly(t *testing.T) {
	resolver := &stubResolver{lists: map[survey.Language][]survey.ResolvedSurvey{
		survey.LanguageRU: resolved("ru", 2),
	}}
	h, bot, store := newTestHandler(resolver)
	ctx := context.Background()
	h.HandleUpdate(ctx, commandUpdate("/surveys"))
	h.Wait()
	edits := len(bot.CallsFor("edit_message"))

	h.Refresh(ctx, "7", survey.LanguageUZ, resolved("uz", 1), nil)
	h.Refresh(ctx, "7", survey.LanguageRU, nil, errors.New("boom"))
	h.Refresh(ctx, "not-a-telegram-id", survey.LanguageRU, nil, nil)
	if got := len(bot.CallsFor("edit_message")); got != edits {
		t.Fatalf("expected no re-render, got %d new edits", got-edits)
	}

	h.Refresh(ctx, "7", survey.LanguageRU, resolved("ru", 2)[1:], nil)
	last := bot.LastCall("edit_message")
	if strings.Contains(last.Text, "ru title ru-1") || !strings.Contains(last.Text, "ru title ru-2") {
		t.Fatalf("expected refreshed list without ru-1, got %q", last.Text)
	}
	if last.MessageID != userState(t, store).LastMessageID {
		t.Fatalf("refresh must edit the open list message")
	}
}

func TestBackToMenuCancelsResolve(t *testing.T) {
	resolver := &stubResolver{
		lists: map[survey.Language][]survey.ResolvedSurvey{survey.LanguageRU: resolved("ru", 1)},
		gates: map[survey.Language]chan struct{}{survey.LanguageRU: make(chan struct{})},
	}
	h, bot, store := newTestHandler(resolver)
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/surveys"))
	listID := userState(t, store).LastMessageID
	h.HandleUpdate(ctx, callbackUpdate("list_nav:tomenu", listID))
	h.Wait()

	u := userState(t, store)
	if u.MenuFSM.Current() != StateIdle || u.LastMessageID != 0 {
		t.Fatalf("expected idle with no list, got %s / %d", u.MenuFSM.Current(), u.LastMessageID)
	}
	for _, c := range bot.CallsFor("edit_message") {
		if strings.Contains(c.Text, "ru title") {
			t.Fatalf("cancelled resolve was rendered")
		}
	}
	if menu := bot.LastCall("send_message"); menu.Text != tr(survey.LanguageRU, "menu.choose") {
		t.Fatalf("expected main menu, got %q", menu.Text)
	}
}

func TestListNavigationOutsideListIsRejected(t *testing.T) {
	h, bot, _ := newTestHandler(&stubResolver{})

	h.HandleUpdate(context.Background(), callbackUpdate("list_nav:next", 5))

	answer := bot.LastCall("answer_callback")
	if answer == nil || answer.Text != tr(survey.LanguageRU, "list.unavailable") {
		t.Fatalf("expected unavailable notice, got %+v", answer)
	}
}

func TestSurveyDetailsWithoutLinkBase(t *testing.T) {
	resolver := &stubResolver{lists: map[survey.Language][]survey.ResolvedSurvey{
		survey.LanguageRU: resolved("ru", 1),
	}}
	bot := &fakeadapter.FakeAdapter{}
	store := state.NewStore(NewFSMCreator(), survey.LanguageRU)
	h := NewHandler(bot, store, resolver, "")
	ctx := context.Background()

	h.HandleUpdate(ctx, commandUpdate("/surveys"))
	h.Wait()
	kb := keyboardOf(t, bot.LastCall("edit_message"))
	data := kb.InlineKeyboard[0][0].CallbackData
	if data == nil || *data != "survey:ru-1" {
		t.Fatalf("expected survey callback button, got %v", data)
	}

	h.HandleUpdate(ctx, callbackUpdate("survey:ru-1", 1))
	if details := bot.LastCall("send_message"); !strings.Contains(details.Text, "ru title ru-1") {
		t.Fatalf("expected survey details, got %q", details.Text)
	}
	h.HandleUpdate(ctx, callbackUpdate("survey:missing", 1))
	if answer := bot.LastCall("answer_callback"); answer.Text != tr(survey.LanguageRU, "survey.gone") {
		t.Fatalf("expected gone notice, got %q", answer.Text)
	}
}

func TestMenuFSMTransitions(t *testing.T) {
	machine := NewMenuFSM(StateIdle)
	ctx := context.Background()
	u := &state.UserState{UserID: 1, ChatID: 1, Language: survey.LanguageRU}
	bot := &fakeadapter.FakeAdapter{}

	steps := []struct {
		event string
		want  string
	}{
		{EventChooseLanguage, StateChoosingLanguage},
		{EventLanguageChosen, StateViewingSurveys},
		{EventChooseLanguage, StateChoosingLanguage},
		{EventBackToIdle, StateIdle},
		{EventViewSurveys, StateViewingSurveys},
	}
	for _, step := range steps {
		if err := machine.Event(ctx, step.event, u, bot); err != nil {
			t.Fatalf("event %s: %v", step.event, err)
		}
		if machine.Current() != step.want {
			t.Fatalf("after %s expected %s, got %s", step.event, step.want, machine.Current())
		}
	}
	if err := machine.Event(ctx, EventLanguageChosen, u, bot); err == nil {
		t.Fatalf("language_chosen must be rejected outside choosing_language")
	}
}

func TestClampOffset(t *testing.T) {
	cases := []struct{ offset, total, want int }{
		{0, 0, 0},
		{-5, 7, 0},
		{5, 7, 5},
		{10, 7, 5},
		{7, 10, 5},
	}
	for _, tc := range cases {
		if got := clampOffset(tc.offset, tc.total); got != tc.want {
			t.Fatalf("clampOffset(%d, %d) = %d, want %d", tc.offset, tc.total, got, tc.want)
		}
	}
}
