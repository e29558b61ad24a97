package state

import "github.com/looplab/fsm"

type FSMCreator interface {
	NewMenuFSM() *fsm.FSM
}
