package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/session"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func readySnapshot(gen uint64, runID string) session.Snapshot {
	return session.Snapshot{
		Generation: gen,
		Language:   "hi-IN",
		RunID:      runID,
		State: session.Ready{
			Utterance:      session.Utterance{RawText: "main khush hoon", SourceLanguage: "hi-IN", CapturedAt: time.Unix(10, 0)},
			TranslatedText: "I am happy",
			Result: conversion.Result{
				GrammarText: "I HAPPY",
				Emotion:     conversion.EmotionHappy,
				Confidence:  0.9,
				VideoRef:    "https://cdn.example/i-happy.mp4",
			},
		},
	}
}

func TestAppendAndRecentNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.Append(ctx, Entry{
			RunID:      id,
			Generation: uint64(i + 1),
			Language:   "en-US",
			Phase:      "ready",
			FinishedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "run-c", recent[0].RunID)
	require.Equal(t, "run-b", recent[1].RunID)
	require.Equal(t, uint64(3), recent[0].Generation)
	require.True(t, base.Add(2*time.Second).Equal(recent[0].FinishedAt))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestAppendIgnoresDuplicateRunID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	entry := Entry{RunID: "same", Language: "en-US", Phase: "failed", FinishedAt: time.Now()}

	require.NoError(t, store.Append(ctx, entry))
	require.NoError(t, store.Append(ctx, entry))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.ErrorIs(t, store.Append(ctx, Entry{}), ErrNoRunID)
}

func TestRecentWithZeroLimit(t *testing.T) {
	recent, err := openTestStore(t).Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestEntryFromTerminalSnapshots(t *testing.T) {
	finished := time.Unix(99, 0)

	entry, ok := EntryFrom(readySnapshot(7, "run-7"), finished)
	require.True(t, ok)
	require.Equal(t, "run-7", entry.RunID)
	require.Equal(t, "ready", entry.Phase)
	require.Equal(t, "main khush hoon", entry.RawText)
	require.Equal(t, "I am happy", entry.TranslatedText)
	require.Equal(t, "I HAPPY", entry.GrammarText)
	require.Equal(t, "happy", entry.Emotion)
	require.Equal(t, "https://cdn.example/i-happy.mp4", entry.VideoRef)
	require.Equal(t, finished, entry.FinishedAt)

	entry, ok = EntryFrom(session.Snapshot{
		Generation: 2,
		Language:   "ta-IN",
		RunID:      "run-2",
		State:      session.Failed{Error: session.ErrorInfo{Kind: session.CaptureFailure, Detail: "no speech"}},
	}, finished)
	require.True(t, ok)
	require.Equal(t, "failed", entry.Phase)
	require.Equal(t, "ta-IN", entry.Language)
	require.Equal(t, "capture_failure", entry.ErrorKind)
	require.Empty(t, entry.RawText)

	_, ok = EntryFrom(session.Snapshot{Generation: 3, State: session.Listening{Language: "en-US"}}, finished)
	require.False(t, ok)
}

func TestRecordStoresEachTerminalRunOnce(t *testing.T) {
	store := openTestStore(t)
	updates := make(chan session.Snapshot, 8)

	updates <- session.Snapshot{Generation: 1, RunID: "run-1", State: session.Listening{Language: "en-US"}}
	updates <- readySnapshot(1, "run-1")
	updates <- readySnapshot(1, "run-1")
	updates <- session.Snapshot{Generation: 2, Language: "en-US", RunID: "run-2", State: session.Failed{Error: session.ErrorInfo{Kind: session.ConversionFailure}}}
	close(updates)

	require.NoError(t, Record(context.Background(), store, updates, nil))

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	phases := []string{recent[0].Phase, recent[1].Phase}
	require.ElementsMatch(t, []string{"ready", "failed"}, phases)
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath(" /tmp/custom.db ")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", got)

	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	got, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "signflow", "history.db"), got)
}
