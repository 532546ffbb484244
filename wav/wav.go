// Package wav provides a render pump and sink for wav files.
package wav

import (
	"errors"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWav is returned when the source file is not a valid wav.
var ErrInvalidWav = errors.New("wav is not valid")

// Pump reads blocks from a wav file.
type Pump struct {
	path string

	file    *os.File
	decoder *wav.Decoder
	ib      *audio.IntBuffer

	numChannels int
	sampleRate  int
	bitDepth    int
	audioFormat int
}

// NewPump creates a pump reading from path.
func NewPump(path string) *Pump {
	return &Pump{path: path}
}

// Start opens and validates the file. Wav properties are accessible once
// Start returned.
func (p *Pump) Start() (float64, int, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return 0, 0, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return 0, 0, ErrInvalidWav
	}
	p.file = file
	p.decoder = decoder
	p.numChannels = decoder.Format().NumChannels
	p.sampleRate = int(decoder.SampleRate)
	p.bitDepth = int(decoder.BitDepth)
	p.audioFormat = int(decoder.WavAudioFormat)
	return float64(p.sampleRate), p.numChannels, nil
}

// Pump fills buf with up to len(buf[0]) frames and returns the number of
// frames read, following the render.Pump error conventions.
func (p *Pump) Pump(buf [][]float32) (int, error) {
	if p.decoder == nil {
		return 0, errors.New("source is not started")
	}
	size := len(buf[0]) * p.numChannels
	if p.ib == nil || len(p.ib.Data) != size {
		p.ib = &audio.IntBuffer{
			Format:         p.decoder.Format(),
			Data:           make([]int, size),
			SourceBitDepth: p.bitDepth,
		}
	}
	read, err := p.decoder.PCMBuffer(p.ib)
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, io.EOF
	}

	// deinterleave into buf, scaled to [-1, 1]
	devider := float32(int(1) << (p.bitDepth - 1))
	frames := read / p.numChannels
	for c := 0; c < p.numChannels; c++ {
		for f := 0; f < frames; f++ {
			buf[c][f] = float32(p.ib.Data[f*p.numChannels+c]) / devider
		}
	}
	if frames < len(buf[0]) {
		return frames, io.ErrUnexpectedEOF
	}
	return frames, nil
}

// Flush closes the file.
func (p *Pump) Flush() error {
	p.decoder = nil
	return p.file.Close()
}

// BitDepth returns wav's bit depth.
func (p *Pump) BitDepth() int {
	return p.bitDepth
}

// Sink writes blocks to a wav file.
type Sink struct {
	path     string
	bitDepth int

	file    *os.File
	encoder *wav.Encoder
	ib      *audio.IntBuffer
}

// NewSink creates a sink writing to path with the provided bit depth.
func NewSink(path string, bitDepth int) *Sink {
	return &Sink{path: path, bitDepth: bitDepth}
}

// Start creates the file and the encoder.
func (s *Sink) Start(sampleRate float64, numChannels int) error {
	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.file = file
	s.encoder = wav.NewEncoder(file, int(sampleRate), s.bitDepth, numChannels, 1)
	s.ib = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  int(sampleRate),
		},
		SourceBitDepth: s.bitDepth,
	}
	return nil
}

// Sink interleaves and writes frames to the file.
func (s *Sink) Sink(buf [][]float32, frames int) error {
	numChannels := len(buf)
	size := frames * numChannels
	if cap(s.ib.Data) < size {
		s.ib.Data = make([]int, size)
	}
	s.ib.Data = s.ib.Data[:size]
	multiplier := float32(int(1)<<(s.bitDepth-1) - 1)
	for c := 0; c < numChannels; c++ {
		for f := 0; f < frames; f++ {
			s.ib.Data[f*numChannels+c] = int(buf[c][f] * multiplier)
		}
	}
	return s.encoder.Write(s.ib)
}

// Flush finalizes the encoder and closes the file.
func (s *Sink) Flush() error {
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
