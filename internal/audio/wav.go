package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeWAV wraps 16kHz mono s16le PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte) []byte {
	const (
		channels      = 1
		bitsPerSample = bytesPerSample * 8
		headerBytes   = 44
	)
	pcm = pcm[:len(pcm)-len(pcm)%bytesPerSample]

	var buf bytes.Buffer
	buf.Grow(headerBytes + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Size          uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		Size:          16,
		Format:        1, // PCM
		Channels:      channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * channels * bytesPerSample,
		BlockAlign:    channels * bytesPerSample,
		BitsPerSample: bitsPerSample,
	})

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// RMS returns the root-mean-square level of s16le PCM normalized to [0,1].
func RMS(pcm []byte) float64 {
	samples := len(pcm) / bytesPerSample
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
