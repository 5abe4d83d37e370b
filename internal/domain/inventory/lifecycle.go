package inventory

import "fmt"

// LifecycleEvent is a requested session transition.
type LifecycleEvent string

const (
	EventStart    LifecycleEvent = "start"
	EventComplete LifecycleEvent = "complete"
	EventCancel   LifecycleEvent = "cancel"
)

type transition struct {
	From  SessionStatus
	Event LifecycleEvent
	To    SessionStatus
}

var sessionTransitions = []transition{
	{From: StatusDraft, Event: EventStart, To: StatusInProgress},
	{From: StatusInProgress, Event: EventComplete, To: StatusCompleted},
	{From: StatusDraft, Event: EventCancel, To: StatusCancelled},
	{From: StatusInProgress, Event: EventCancel, To: StatusCancelled},
}

// NextStatus returns the status a session moves to when ev is applied in
// status from.
func NextStatus(from SessionStatus, ev LifecycleEvent) (SessionStatus, error) {
	for _, tr := range sessionTransitions {
		if tr.From == from && tr.Event == ev {
			return tr.To, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, ev, from)
}

// sourceStatuses lists every status ev may be applied in.
func sourceStatuses(ev LifecycleEvent) []SessionStatus {
	var from []SessionStatus
	for _, tr := range sessionTransitions {
		if tr.Event == ev {
			from = append(from, tr.From)
		}
	}
	return from
}

// requireInProgress guards item-level mutations.
func requireInProgress(sess *Session) error {
	if sess.Status != StatusInProgress {
		return fmt.Errorf("%w: session is %s, not in progress", ErrInvalidTransition, sess.Status)
	}
	return nil
}

type taskTransition struct {
	From []TaskStatus
	To   TaskStatus
}

var (
	taskBegin  = taskTransition{From: []TaskStatus{TaskPending}, To: TaskInProgress}
	taskFinish = taskTransition{From: []TaskStatus{TaskPending, TaskInProgress}, To: TaskCompleted}
)

func (t taskTransition) allows(status TaskStatus) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}
