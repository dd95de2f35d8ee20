package session

import (
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/fsm"
	"github.com/rbright/signflow/internal/language"
)

// ErrorKind classifies which pipeline step failed.
type ErrorKind string

const (
	CaptureFailure     ErrorKind = "capture_failure"
	TranslationFailure ErrorKind = "translation_failure"
	ConversionFailure  ErrorKind = "conversion_failure"
)

// ErrorInfo is the failure carried by the Failed phase. Detail is diagnostic text only.
type ErrorInfo struct {
	Kind   ErrorKind
	Detail string
}

// Utterance is one final transcript plus the language it was spoken in.
type Utterance struct {
	RawText        string
	SourceLanguage language.Code
	CapturedAt     time.Time
}

// State is one pipeline phase and exactly the fields valid in it.
type State interface {
	Phase() fsm.Phase
	state()
}

// Idle is the resting phase: nothing captured, nothing in flight.
type Idle struct{}

// Listening waits on the capture device.
type Listening struct {
	Language language.Code
}

// Translating waits on the remote translate step.
type Translating struct {
	Utterance Utterance
}

// Converting waits on the remote classify step. TranslatedText is empty for pivot input.
type Converting struct {
	Utterance      Utterance
	TranslatedText string
}

// Ready holds a complete conversion.
type Ready struct {
	Utterance      Utterance
	TranslatedText string
	Result         conversion.Result
}

// Failed holds the terminal error of a run. Utterance is zero for capture failures.
type Failed struct {
	Utterance      Utterance
	TranslatedText string
	Error          ErrorInfo
}

func (Idle) Phase() fsm.Phase        { return fsm.PhaseIdle }
func (Listening) Phase() fsm.Phase   { return fsm.PhaseListening }
func (Translating) Phase() fsm.Phase { return fsm.PhaseTranslating }
func (Converting) Phase() fsm.Phase  { return fsm.PhaseConverting }
func (Ready) Phase() fsm.Phase       { return fsm.PhaseReady }
func (Failed) Phase() fsm.Phase      { return fsm.PhaseFailed }

func (Idle) state()        {}
func (Listening) state()   {}
func (Translating) state() {}
func (Converting) state()  {}
func (Ready) state()       {}
func (Failed) state()      {}

// Snapshot is an immutable view of the orchestrator handed to readers.
type Snapshot struct {
	Generation uint64
	Language   language.Code
	// Capturing tracks the device between Begin and its end notification.
	Capturing bool
	RunID     string
	State     State
}

// Phase returns the phase of the wrapped state.
func (s Snapshot) Phase() fsm.Phase {
	if s.State == nil {
		return fsm.PhaseIdle
	}
	return s.State.Phase()
}

// Result returns the conversion result; ok is true only in Ready.
func (s Snapshot) Result() (conversion.Result, bool) {
	if r, ok := s.State.(Ready); ok {
		return r.Result, true
	}
	return conversion.Result{}, false
}

// Err returns the failure; ok is true only in Failed.
func (s Snapshot) Err() (ErrorInfo, bool) {
	if f, ok := s.State.(Failed); ok {
		return f.Error, true
	}
	return ErrorInfo{}, false
}

// Utterance returns the captured utterance when the run got that far.
func (s Snapshot) Utterance() (Utterance, bool) {
	var u Utterance
	switch st := s.State.(type) {
	case Translating:
		u = st.Utterance
	case Converting:
		u = st.Utterance
	case Ready:
		u = st.Utterance
	case Failed:
		u = st.Utterance
	}
	return u, u.RawText != ""
}

// TranslatedText returns the pivot-language text when a translate step succeeded.
func (s Snapshot) TranslatedText() (string, bool) {
	var text string
	switch st := s.State.(type) {
	case Converting:
		text = st.TranslatedText
	case Ready:
		text = st.TranslatedText
	case Failed:
		text = st.TranslatedText
	}
	return text, text != ""
}
