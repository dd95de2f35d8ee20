package session

import (
	"time"

	"github.com/rbright/signflow/internal/fsm"
)

// View is the wire rendering of a Snapshot shared by every presentation
// client. Optional sections are present only in the phases that carry them.
type View struct {
	Generation     uint64         `json:"generation"`
	Language       string         `json:"language"`
	Capturing      bool           `json:"capturing"`
	RunID          string         `json:"run_id,omitempty"`
	Phase          fsm.Phase      `json:"phase"`
	Utterance      *UtteranceView `json:"utterance,omitempty"`
	TranslatedText string         `json:"translated_text,omitempty"`
	Result         *ResultView    `json:"result,omitempty"`
	Error          *ErrorView     `json:"error,omitempty"`
}

type UtteranceView struct {
	RawText        string    `json:"raw_text"`
	SourceLanguage string    `json:"source_language"`
	CapturedAt     time.Time `json:"captured_at"`
}

type ResultView struct {
	GrammarText string  `json:"grammar_text"`
	Emotion     string  `json:"emotion"`
	Confidence  float64 `json:"confidence"`
	VideoRef    string  `json:"video_ref,omitempty"`
}

type ErrorView struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// View renders the snapshot for JSON clients.
func (s Snapshot) View() View {
	v := View{
		Generation: s.Generation,
		Language:   s.Language.String(),
		Capturing:  s.Capturing,
		RunID:      s.RunID,
		Phase:      s.Phase(),
	}
	if u, ok := s.Utterance(); ok {
		v.Utterance = &UtteranceView{
			RawText:        u.RawText,
			SourceLanguage: u.SourceLanguage.String(),
			CapturedAt:     u.CapturedAt.UTC(),
		}
	}
	if text, ok := s.TranslatedText(); ok {
		v.TranslatedText = text
	}
	if r, ok := s.Result(); ok {
		v.Result = &ResultView{
			GrammarText: r.GrammarText,
			Emotion:     string(r.Emotion),
			Confidence:  r.Confidence,
			VideoRef:    r.VideoRef,
		}
	}
	if e, ok := s.Err(); ok {
		v.Error = &ErrorView{Kind: e.Kind, Detail: e.Detail}
	}
	return v
}
