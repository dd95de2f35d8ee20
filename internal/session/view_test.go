package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/fsm"
	"github.com/stretchr/testify/require"
)

func TestViewCarriesOnlyPhaseFields(t *testing.T) {
	utterance := Utterance{RawText: "hola", SourceLanguage: "es-ES", CapturedAt: time.Unix(100, 0)}

	ready := Snapshot{
		Generation: 4,
		Language:   "es-ES",
		RunID:      "run-4",
		State: Ready{
			Utterance:      utterance,
			TranslatedText: "hello",
			Result:         conversion.Result{GrammarText: "HELLO", Emotion: conversion.EmotionNeutral, Confidence: 0.5},
		},
	}.View()
	require.Equal(t, fsm.PhaseReady, ready.Phase)
	require.Equal(t, "hola", ready.Utterance.RawText)
	require.Equal(t, "hello", ready.TranslatedText)
	require.Equal(t, "HELLO", ready.Result.GrammarText)
	require.Nil(t, ready.Error)

	failed := Snapshot{Generation: 2, Language: "en-US", State: Failed{Error: ErrorInfo{Kind: CaptureFailure, Detail: "mic"}}}.View()
	require.Nil(t, failed.Utterance)
	require.Nil(t, failed.Result)
	require.Equal(t, CaptureFailure, failed.Error.Kind)

	raw, err := json.Marshal(Snapshot{Language: "en-US"}.View())
	require.NoError(t, err)
	require.JSONEq(t, `{"generation":0,"language":"en-US","capturing":false,"phase":"idle"}`, string(raw))
}
