// Package conversion holds the remote classify output: grammar text, emotion, and video reference.
package conversion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Emotion is the closed set of tone labels reported for an utterance.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionNeutral   Emotion = "neutral"
	EmotionFear      Emotion = "fear"
	EmotionUnknown   Emotion = "unknown"
)

var emotionAliases = map[string]Emotion{
	"happy":     EmotionHappy,
	"joy":       EmotionHappy,
	"sad":       EmotionSad,
	"sadness":   EmotionSad,
	"angry":     EmotionAngry,
	"anger":     EmotionAngry,
	"surprised": EmotionSurprised,
	"surprise":  EmotionSurprised,
	"neutral":   EmotionNeutral,
	"fear":      EmotionFear,
	"afraid":    EmotionFear,
}

// ParseEmotion maps a raw label to the closed set. Absent or unrecognized
// labels become EmotionUnknown, never EmotionNeutral.
func ParseEmotion(raw string) Emotion {
	if e, ok := emotionAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return e
	}
	return EmotionUnknown
}

// Result is one complete classify response.
type Result struct {
	GrammarText string
	Emotion     Emotion
	Confidence  float64
	// VideoRef is empty when no sign video exists for the grammar yet.
	VideoRef string
}

// HasVideo reports whether a video asset was resolved.
func (r Result) HasVideo() bool {
	return r.VideoRef != ""
}

// Validate rejects partially populated results.
func (r Result) Validate() error {
	if strings.TrimSpace(r.GrammarText) == "" {
		return errors.New("grammar text is empty")
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	switch r.Emotion {
	case EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised, EmotionNeutral, EmotionFear, EmotionUnknown:
	default:
		return fmt.Errorf("emotion %q outside label set", r.Emotion)
	}
	return nil
}
