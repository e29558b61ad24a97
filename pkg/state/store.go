package state

import (
	"log"
	"sync"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// Store keeps per-Telegram-user session state in memory.
type Store struct {
	users           map[int64]*UserState
	fsmCreator      FSMCreator
	defaultLanguage survey.Language
	mu              sync.Mutex
}

func NewStore(f FSMCreator, defaultLanguage survey.Language) *Store {
	if defaultLanguage == "" {
		defaultLanguage = survey.DefaultLanguage
	}
	return &Store{
		users:           make(map[int64]*UserState),
		fsmCreator:      f,
		defaultLanguage: defaultLanguage,
	}
}

func (s *Store) GetOrCreateUserState(userID, chatID int64, userName string) *UserState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userState, exists := s.users[userID]; exists {
		if userState.UserName != userName {
			log.Printf("[GetOrCreateUserState] updating username for user %d: '%s' -> '%s'", userID, userState.UserName, userName)
			userState.UserName = userName
		}
		if chatID != 0 {
			userState.ChatID = chatID
		}
		return userState
	}

	menuFSM := s.fsmCreator.NewMenuFSM()
	if menuFSM == nil {
		log.Printf("[GetOrCreateUserState] CRITICAL: failed to initialize menu FSM for user %d", userID)
		return nil
	}

	userState := &UserState{
		UserID:   userID,
		ChatID:   chatID,
		UserName: userName,
		Language: s.defaultLanguage,
		MenuFSM:  menuFSM,
	}
	s.users[userID] = userState
	log.Printf("[GetOrCreateUserState] created state for user %d ('%s')", userID, userName)
	return userState
}

// Lookup returns the state of a user seen before.
func (s *Store) Lookup(userID int64) (*UserState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	return u, ok
}
