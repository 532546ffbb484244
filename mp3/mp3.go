// Package mp3 provides a render sink for mp3 files.
package mp3

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"

	"github.com/viert/lame"
)

// Sink writes rendered blocks to an mp3 file.
type Sink struct {
	path    string
	bitRate int
	quality int

	file *os.File
	wr   *lame.LameWriter
}

// NewSink creates a sink writing to path with the provided bit rate in kbps
// and quality from 0 (best) to 9.
func NewSink(path string, bitRate, quality int) *Sink {
	return &Sink{
		path:    path,
		bitRate: bitRate,
		quality: quality,
	}
}

// Start creates the file and configures the encoder.
func (s *Sink) Start(sampleRate float64, numChannels int) error {
	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.file = file
	s.wr = lame.NewWriter(file)
	s.wr.Encoder.SetBitrate(s.bitRate)
	s.wr.Encoder.SetQuality(s.quality)
	s.wr.Encoder.SetInSamplerate(int(sampleRate))
	s.wr.Encoder.SetNumChannels(numChannels)
	s.wr.Encoder.InitParams()
	return nil
}

// Sink interleaves frames to 16-bit little-endian pcm and encodes them.
func (s *Sink) Sink(buf [][]float32, frames int) error {
	numChannels := len(buf)
	interleaved := make([]int16, frames*numChannels)
	for c := 0; c < numChannels; c++ {
		for f := 0; f < frames; f++ {
			interleaved[f*numChannels+c] = int16(buf[c][f] * (math.MaxInt16 - 1))
		}
	}
	pcm := new(bytes.Buffer)
	if err := binary.Write(pcm, binary.LittleEndian, interleaved); err != nil {
		return err
	}
	_, err := s.wr.Write(pcm.Bytes())
	return err
}

// Flush finalizes the encoder and closes the file.
func (s *Sink) Flush() error {
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
