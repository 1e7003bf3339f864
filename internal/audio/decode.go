package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidWAV        = errors.New("invalid wav file")
)

// CanDecode reports whether Decode handles path without an external transcoder.
func CanDecode(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac", ".wav":
		return true
	default:
		return false
	}
}

// Decode reads an MP3, FLAC or WAV file into mono PCM at its native sample rate.
func Decode(path string) (PCM, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(path)
	case ".flac":
		return decodeFLAC(path)
	case ".wav":
		return decodeWAV(path)
	default:
		return PCM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodeMP3(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3 header: %w", err)
	}

	// go-mp3 always yields interleaved stereo s16le, 4 bytes per frame.
	var samples []int16
	if length := decoder.Length(); length > 0 {
		samples = make([]int16, 0, length/4)
	}

	buf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, readErr := decoder.Read(buf)
		pending = append(pending, buf[:n]...)

		full := len(pending) - len(pending)%4
		for i := 0; i < full; i += 4 {
			left := int16(uint16(pending[i]) | uint16(pending[i+1])<<8)
			right := int16(uint16(pending[i+2]) | uint16(pending[i+3])<<8)
			samples = append(samples, int16((int32(left)+int32(right))/2))
		}
		pending = append(pending[:0], pending[full:]...)

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return PCM{}, fmt.Errorf("decode mp3: %w", readErr)
		}
	}

	return PCM{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

func decodeFLAC(path string) (PCM, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("open flac: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bits := int(stream.Info.BitsPerSample)
	if channels <= 0 || bits <= 0 {
		return PCM{}, fmt.Errorf("%w: flac stream with %d channels at %d bits", ErrUnsupportedFormat, channels, bits)
	}

	var samples []int16
	if stream.Info.NSamples > 0 {
		samples = make([]int16, 0, stream.Info.NSamples)
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("decode flac frame: %w", err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var mono int64
			for ch := 0; ch < channels; ch++ {
				mono += int64(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, scaleTo16(mono/int64(channels), bits))
		}
	}

	return PCM{Samples: samples, SampleRate: int(stream.Info.SampleRate)}, nil
}

func decodeWAV(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return PCM{}, ErrInvalidWAV
	}
	if decoder.WavAudioFormat != 1 {
		return PCM{}, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("read wav data: %w", err)
	}

	channels := int(decoder.NumChans)
	bits := int(decoder.BitDepth)
	if channels <= 0 {
		return PCM{}, ErrInvalidWAV
	}

	frames := len(buf.Data) / channels
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var mono int64
		for ch := 0; ch < channels; ch++ {
			v := int64(buf.Data[i*channels+ch])
			if bits == 8 {
				// 8-bit WAV is unsigned around 128.
				v -= 128
			}
			mono += v
		}
		samples[i] = scaleTo16(mono/int64(channels), bits)
	}

	return PCM{Samples: samples, SampleRate: int(decoder.SampleRate)}, nil
}

func scaleTo16(v int64, bits int) int16 {
	switch {
	case bits > 16:
		v >>= uint(bits - 16)
	case bits < 16:
		v <<= uint(16 - bits)
	}
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
