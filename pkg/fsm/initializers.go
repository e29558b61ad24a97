package fsm

import (
	"github.com/looplab/fsm"

	"github.com/dkalashnik/survey-rewards-bot/pkg/state"
)

type fsmCreatorImpl struct{}

func (fc *fsmCreatorImpl) NewMenuFSM() *fsm.FSM {
	return NewMenuFSM(StateIdle)
}

func NewFSMCreator() state.FSMCreator {
	return &fsmCreatorImpl{}
}
