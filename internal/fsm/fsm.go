// Package fsm defines the conversion pipeline phases and their legal transitions.
package fsm

import "fmt"

type Phase string

type Event string

const (
	PhaseIdle        Phase = "idle"
	PhaseListening   Phase = "listening"
	PhaseTranslating Phase = "translating"
	PhaseConverting  Phase = "converting"
	PhaseReady       Phase = "ready"
	PhaseFailed      Phase = "failed"
)

const (
	EventStart           Event = "start"
	EventCaptured        Event = "captured"
	EventCapturedForeign Event = "captured_foreign"
	EventCaptureFailed   Event = "capture_failed"
	EventStopped         Event = "stopped"
	EventTranslated      Event = "translated"
	EventTranslateFailed Event = "translate_failed"
	EventConverted       Event = "converted"
	EventConvertFailed   Event = "convert_failed"
	EventReset           Event = "reset"
)

// Transition returns the phase reached by applying event to current.
//
// EventReset (a language change) is accepted from every phase. EventStart is
// accepted from the resting phases and, to let a caller force past a hung
// remote step, from the two processing phases.
func Transition(current Phase, event Event) (Phase, error) {
	if !current.Known() {
		return current, fmt.Errorf("unknown phase %q", current)
	}
	if event == EventReset {
		return PhaseIdle, nil
	}

	switch current {
	case PhaseIdle, PhaseReady, PhaseFailed:
		if event == EventStart {
			return PhaseListening, nil
		}
	case PhaseListening:
		switch event {
		case EventCaptured:
			return PhaseConverting, nil
		case EventCapturedForeign:
			return PhaseTranslating, nil
		case EventCaptureFailed:
			return PhaseFailed, nil
		case EventStopped:
			return PhaseIdle, nil
		}
	case PhaseTranslating:
		switch event {
		case EventStart:
			return PhaseListening, nil
		case EventTranslated:
			return PhaseConverting, nil
		case EventTranslateFailed:
			return PhaseFailed, nil
		}
	case PhaseConverting:
		switch event {
		case EventStart:
			return PhaseListening, nil
		case EventConverted:
			return PhaseReady, nil
		case EventConvertFailed:
			return PhaseFailed, nil
		}
	}
	return current, invalidTransition(current, event)
}

// Known reports whether p is one of the declared phases.
func (p Phase) Known() bool {
	switch p {
	case PhaseIdle, PhaseListening, PhaseTranslating, PhaseConverting, PhaseReady, PhaseFailed:
		return true
	default:
		return false
	}
}

// InFlight reports whether capture or a remote step is outstanding in p.
func (p Phase) InFlight() bool {
	return p == PhaseListening || p == PhaseTranslating || p == PhaseConverting
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
