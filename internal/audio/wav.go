// Package audio reads and writes the RIFF/WAVE headers the gateway deals with.
// It never decodes samples; checking that audio is usable is the engine's job.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	FormatPCM        = 1
	FormatIEEEFloat  = 3
	FormatExtensible = 0xFFFE
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// Info describes a WAV stream as declared by its header.
type Info struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int64
}

// Duration derives playback length from the data chunk size.
func (i Info) Duration() time.Duration {
	bytesPerSecond := int64(i.SampleRate) * int64(i.Channels) * int64(i.BitsPerSample) / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(i.DataSize * int64(time.Second) / bytesPerSecond)
}

// Inspect reads the header of the WAV file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses the fmt chunk of r and seeks forward to the data chunk.
func Read(r io.ReadSeeker) (Info, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 || d.BitDepth == 0 {
		return Info{}, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}

	if err := d.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if d.PCMChunk == nil {
		return Info{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}

	return Info{
		Format:        d.WavAudioFormat,
		Channels:      int(d.NumChans),
		SampleRate:    int(d.SampleRate),
		BitsPerSample: int(d.BitDepth),
		DataSize:      int64(d.PCMSize),
	}, nil
}

// Silence builds a PCM WAV file holding numSamples frames of silence.
// It panics if the format arguments are not positive.
func Silence(numSamples, sampleRate, channels, bitsPerSample int) []byte {
	if sampleRate <= 0 || channels <= 0 || bitsPerSample <= 0 {
		panic(fmt.Sprintf("audio: invalid silence format %d Hz, %d ch, %d bit", sampleRate, channels, bitsPerSample))
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, sampleRate, bitsPerSample, channels, FormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, numSamples*channels),
		SourceBitDepth: bitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		panic(fmt.Sprintf("audio: encode silence: %v", err))
	}
	if err := enc.Close(); err != nil {
		panic(fmt.Sprintf("audio: encode silence: %v", err))
	}
	return out.buf
}

// seekBuffer is the in-memory io.WriteSeeker the WAV encoder needs to
// patch chunk sizes after the samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
