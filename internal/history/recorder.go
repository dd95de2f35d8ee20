package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/signflow/internal/session"
)

// EntryFrom converts a terminal snapshot. ok is false outside Ready and Failed.
func EntryFrom(snap session.Snapshot, finishedAt time.Time) (Entry, bool) {
	view := snap.View()
	if view.Result == nil && view.Error == nil {
		return Entry{}, false
	}

	e := Entry{
		RunID:          view.RunID,
		Generation:     view.Generation,
		Language:       view.Language,
		Phase:          string(view.Phase),
		TranslatedText: view.TranslatedText,
		FinishedAt:     finishedAt,
	}
	if view.Utterance != nil {
		e.RawText = view.Utterance.RawText
		e.Language = view.Utterance.SourceLanguage
	}
	if r := view.Result; r != nil {
		e.GrammarText = r.GrammarText
		e.Emotion = r.Emotion
		e.Confidence = r.Confidence
		e.VideoRef = r.VideoRef
	}
	if fail := view.Error; fail != nil {
		e.ErrorKind = string(fail.Kind)
		e.ErrorDetail = fail.Detail
	}
	return e, true
}

// Record appends every terminal snapshot from updates until it closes or ctx
// ends. Write failures are logged, never fatal.
func Record(ctx context.Context, store *Store, updates <-chan session.Snapshot, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var lastRun string
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			entry, terminal := EntryFrom(snap, time.Now())
			if !terminal || entry.RunID == lastRun {
				continue
			}
			if err := store.Append(ctx, entry); err != nil {
				logger.Warn("history append failed", "run_id", entry.RunID, "error", err.Error())
				continue
			}
			lastRun = entry.RunID
			logger.Debug("history recorded", "run_id", entry.RunID, "phase", entry.Phase)
		}
	}
}
