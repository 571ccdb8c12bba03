package domain

import (
	"time"

	"github.com/google/uuid"
)

// EscrowState is the lifecycle state of the funds behind a booking.
type EscrowState string

const (
	EscrowStateInitiated        EscrowState = "initiated"
	EscrowStatePaymentPending   EscrowState = "payment_pending"
	EscrowStatePaymentConfirmed EscrowState = "payment_confirmed"
	EscrowStateMoveInPending    EscrowState = "move_in_pending"
	EscrowStateCompleted        EscrowState = "completed"

	// EscrowStateDispute sits outside the linear timeline.
	EscrowStateDispute EscrowState = "dispute"
)

// EscrowTimeline is the fixed display order of the linear escrow states.
var EscrowTimeline = []EscrowState{
	EscrowStateInitiated,
	EscrowStatePaymentPending,
	EscrowStatePaymentConfirmed,
	EscrowStateMoveInPending,
	EscrowStateCompleted,
}

// IsValid reports whether s is one of the known escrow states.
func (s EscrowState) IsValid() bool {
	if s == EscrowStateDispute {
		return true
	}
	_, ok := IndexOf(s)
	return ok
}

// IsTerminal reports whether no further transition is modelled from s.
func (s EscrowState) IsTerminal() bool {
	return s == EscrowStateCompleted || s == EscrowStateDispute
}

// IsHeld reports whether funds are sitting in escrow in state s.
func (s EscrowState) IsHeld() bool {
	return s == EscrowStatePaymentConfirmed || s == EscrowStateMoveInPending
}

// IndexOf returns the 0-based position of s on the timeline.
func IndexOf(s EscrowState) (int, bool) {
	for i, step := range EscrowTimeline {
		if step == s {
			return i, true
		}
	}
	return -1, false
}

// CurrentStepIndex is IndexOf under the timeline's name. Dispute has no index.
func CurrentStepIndex(s EscrowState) (int, bool) {
	return IndexOf(s)
}

// IsStepComplete reports whether timeline step stepIndex has been reached in state s.
func IsStepComplete(s EscrowState, stepIndex int) bool {
	current, ok := CurrentStepIndex(s)
	if !ok || stepIndex < 0 {
		return false
	}
	return stepIndex <= current
}

// ProgressPercent is the share of the timeline reached, for progress bars.
func ProgressPercent(s EscrowState) int {
	current, ok := CurrentStepIndex(s)
	if !ok {
		return 0
	}
	return (current + 1) * 100 / len(EscrowTimeline)
}

// CanTransition reports whether from -> to is a permitted escrow move:
// exactly one step forward, or into dispute from any non-terminal state.
func CanTransition(from, to EscrowState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == EscrowStateDispute {
		return from.IsValid()
	}
	fromIdx, ok := IndexOf(from)
	if !ok {
		return false
	}
	toIdx, ok := IndexOf(to)
	if !ok {
		return false
	}
	return toIdx == fromIdx+1
}

// TimelineStep is one rendered row of the escrow timeline.
type TimelineStep struct {
	State    EscrowState `json:"state"`
	Index    int         `json:"index"`
	Complete bool        `json:"complete"`
	Current  bool        `json:"current"`
}

// TimelineView is what dashboards render for a booking's escrow.
type TimelineView struct {
	State    EscrowState    `json:"state"`
	Steps    []TimelineStep `json:"steps"`
	Progress int            `json:"progress"`
	Disputed bool           `json:"disputed"`
}

// BuildTimelineView lays out the timeline for s. A disputed escrow gets
// no completed steps and Disputed set; it is not a position on the line.
func BuildTimelineView(s EscrowState) TimelineView {
	current, onLine := CurrentStepIndex(s)
	steps := make([]TimelineStep, 0, len(EscrowTimeline))
	for i, step := range EscrowTimeline {
		steps = append(steps, TimelineStep{
			State:    step,
			Index:    i,
			Complete: IsStepComplete(s, i),
			Current:  onLine && i == current,
		})
	}
	return TimelineView{
		State:    s,
		Steps:    steps,
		Progress: ProgressPercent(s),
		Disputed: s == EscrowStateDispute,
	}
}

// EscrowEvent is an append-only record of one escrow state change.
type EscrowEvent struct {
	ID         uuid.UUID   `json:"id"`
	BookingID  string      `json:"booking_id"`
	FromState  EscrowState `json:"from_state,omitempty"`
	ToState    EscrowState `json:"to_state"`
	Actor      string      `json:"actor"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
