package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

type cue int

const (
	cueListen cue = iota + 1
	cueStopped
	cueReady
	cueFailed
)

func (c cue) String() string {
	switch c {
	case cueListen:
		return "listen"
	case cueStopped:
		return "stopped"
	case cueReady:
		return "ready"
	case cueFailed:
		return "failed"
	default:
		return "none"
	}
}

const cueSampleRate = 16000

type tone struct {
	hz       float64
	duration time.Duration
	volume   float64
}

var cuePCM = map[cue][]int16{
	cueListen:  synthesize(tone{880, 70 * time.Millisecond, 0.18}, tone{1175, 70 * time.Millisecond, 0.18}),
	cueStopped: synthesize(tone{620, 120 * time.Millisecond, 0.18}),
	cueReady:   synthesize(tone{740, 65 * time.Millisecond, 0.18}, tone{988, 90 * time.Millisecond, 0.18}),
	cueFailed:  synthesize(tone{480, 75 * time.Millisecond, 0.18}, tone{360, 90 * time.Millisecond, 0.18}),
}

// playPulse plays c through a short-lived Pulse playback stream.
func playPulse(c cue) error {
	samples := cuePCM[c]
	if len(samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("signflow"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("signflow "+c.String()+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", c, err)
	}
	return nil
}

// synthesize renders tones back to back with a short silent gap between them.
func synthesize(parts ...tone) []int16 {
	gap := make([]int16, samplesFor(22*time.Millisecond))
	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, part.render()...)
	}
	return pcm
}

// render produces a sine with a linear ramp of at most 5ms at both ends.
func (t tone) render() []int16 {
	n := samplesFor(t.duration)
	if n <= 0 || t.hz <= 0 || t.volume <= 0 {
		return nil
	}
	ramp := max(1, min(n/10, cueSampleRate/200))

	pcm := make([]int16, n)
	for i := range pcm {
		envelope := min(1.0, float64(i)/float64(ramp), float64(n-i-1)/float64(ramp))
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * t.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
