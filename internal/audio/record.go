package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate     = 16000
	bytesPerSample = 2
	fragmentBytes  = 640 // 20ms @ 16kHz mono s16
)

// Recorder opens bounded recordings from the configured input preference.
type Recorder struct {
	Input       string
	Fallback    string
	MaxDuration time.Duration
}

// Start resolves the device and begins recording. The returned warning is
// non-empty when the fallback source was used.
func (r Recorder) Start(ctx context.Context) (*Recording, string, error) {
	selection, err := SelectDevice(ctx, r.Input, r.Fallback)
	if err != nil {
		return nil, "", err
	}
	rec, err := Record(ctx, selection.Device, r.MaxDuration)
	if err != nil {
		return nil, "", err
	}
	return rec, selection.Warning, nil
}

// Recording accumulates 16kHz mono s16le PCM from one source until Stop is
// called, ctx ends, or the duration limit fills the buffer.
type Recording struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	limit int
	full  chan struct{}

	mu      sync.Mutex
	pcm     []byte
	stopped bool
	filled  bool
}

// Record starts a record stream on selected, capped at maxDuration of audio.
func Record(ctx context.Context, selected Device, maxDuration time.Duration) (*Recording, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	rec := newRecording(selected, maxDuration)
	rec.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(rec.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("signflow utterance"),
	)
	if err != nil {
		rec.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	rec.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			rec.Stop()
		case <-rec.full:
		}
	}()
	return rec, nil
}

func newRecording(device Device, maxDuration time.Duration) *Recording {
	return &Recording{
		device: device,
		limit:  BytesFor(maxDuration),
		full:   make(chan struct{}),
	}
}

// BytesFor returns the PCM size of d at the capture format.
func BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	samples := int(d.Seconds() * SampleRate)
	return samples * bytesPerSample
}

// DurationOf returns the play time of n PCM bytes.
func DurationOf(n int) time.Duration {
	return time.Duration(n/bytesPerSample) * time.Second / SampleRate
}

// Device returns the source being recorded.
func (r *Recording) Device() Device {
	return r.device
}

// Full is closed once the duration limit is reached.
func (r *Recording) Full() <-chan struct{} {
	return r.full
}

// Stop halts the stream and returns the captured PCM. It is safe to call
// more than once; later calls return the same audio.
func (r *Recording) Stop() []byte {
	r.mu.Lock()
	if r.stopped {
		out := append([]byte(nil), r.pcm...)
		r.mu.Unlock()
		return out
	}
	r.stopped = true
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.pcm...)
}

func (r *Recording) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.filled {
		return 0, io.EOF
	}

	take := buffer
	if r.limit > 0 && len(r.pcm)+len(take) >= r.limit {
		take = take[:r.limit-len(r.pcm)]
		r.filled = true
	}
	r.pcm = append(r.pcm, take...)
	if r.filled {
		close(r.full)
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
