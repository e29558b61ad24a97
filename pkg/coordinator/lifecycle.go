package coordinator

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Per-user survey lifecycle. Completed is terminal for normal use; only the
// diagnostic reset event leads back to available.
const (
	StateAvailable = "available"
	StateCompleted = "completed"
)

const (
	EventSubmit = "submit"
	EventReset  = "reset"
)

// NewLifecycleFSM returns a survey lifecycle machine starting in initialState.
// onComplete runs when the survey enters completed, onReset when a
// diagnostic reset returns it to available.
func NewLifecycleFSM(initialState string, onComplete, onReset func(ctx context.Context)) *fsm.FSM {
	events := fsm.Events{
		{Name: EventSubmit, Src: []string{StateAvailable}, Dst: StateCompleted},
		{Name: EventReset, Src: []string{StateCompleted}, Dst: StateAvailable},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateCompleted: func(ctx context.Context, e *fsm.Event) {
			if onComplete != nil {
				onComplete(ctx)
			}
		},
		"after_" + EventReset: func(ctx context.Context, e *fsm.Event) {
			if onReset != nil {
				onReset(ctx)
			}
		},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}

func isInvalidEvent(err error) bool {
	if err == nil {
		return false
	}
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	return errors.As(err, &invalid) || errors.As(err, &noTransition)
}
