package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// PCM is decoded mono 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Bytes returns the samples as little-endian s16 PCM.
func (p PCM) Bytes() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func (p PCM) offset(sample int) time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(sample) * time.Second / time.Duration(p.SampleRate)
}

// Segment is a time-bounded slice of a decoded audio file.
type Segment struct {
	Index int
	Start time.Duration
	PCM
}

func (s Segment) End() time.Duration {
	return s.Start + s.Duration()
}

func (s Segment) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", s.Index, s.Start.Round(time.Millisecond), s.End().Round(time.Millisecond))
}

type Levels struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

func (p PCM) Levels() Levels {
	if len(p.Samples) == 0 {
		return Levels{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	var peak, sumSquares float64
	for _, s := range p.Samples {
		value := float64(s) / 32768.0
		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	rms := math.Sqrt(sumSquares / float64(len(p.Samples)))
	return Levels{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  int64(len(p.Samples)),
	}
}

// Silent reports whether the levels sit below thresholdDBFS. Peaks get 6 dB
// of headroom so isolated clicks do not count as speech.
func (l Levels) Silent(thresholdDBFS float64) bool {
	if l.Samples == 0 {
		return true
	}
	if math.IsInf(l.RMSdBFS, -1) && math.IsInf(l.PeakdBFS, -1) {
		return true
	}
	return l.RMSdBFS <= thresholdDBFS && l.PeakdBFS <= thresholdDBFS+6
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
