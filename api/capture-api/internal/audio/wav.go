// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
)

const (
	wavHeaderSize = 44
	wavPCMFormat  = 1 // WAV PCM format tag
)

// WAVHeader is the subset of a canonical RIFF/WAVE header we produce.
type WAVHeader struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// Duration is the playback length of the data chunk.
func (h WAVHeader) Duration() time.Duration {
	return PCMDuration(internal_type.AudioFormat{
		SampleRate:    h.SampleRate,
		Channels:      h.Channels,
		BitsPerSample: h.BitsPerSample,
	}, h.DataSize)
}

// WriteWAV writes the header for format followed by every frame, in order.
func WriteWAV(w io.Writer, format internal_type.AudioFormat, frames [][]byte) error {
	dataSize := 0
	for _, f := range frames {
		dataSize += len(f)
	}
	blockAlign := format.Channels * format.BitsPerSample / 8
	byteRate := format.SampleRate * blockAlign

	bw := bufio.NewWriter(w)
	var werr error
	put := func(v interface{}) {
		if werr == nil {
			werr = binary.Write(bw, binary.LittleEndian, v)
		}
	}
	tag := func(s string) {
		if werr == nil {
			_, werr = bw.WriteString(s)
		}
	}

	tag("RIFF")
	put(uint32(36 + dataSize))
	tag("WAVE")

	tag("fmt ")
	put(uint32(16))
	put(uint16(wavPCMFormat))
	put(uint16(format.Channels))
	put(uint32(format.SampleRate))
	put(uint32(byteRate))
	put(uint16(blockAlign))
	put(uint16(format.BitsPerSample))

	tag("data")
	put(uint32(dataSize))
	if werr != nil {
		return werr
	}
	for _, f := range frames {
		if _, err := bw.Write(f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteWAVFile creates path and writes frames as a WAV file. Any failure is
// returned as an *internal_type.IOError.
func WriteWAVFile(path string, format internal_type.AudioFormat, frames [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return &internal_type.IOError{Path: path, Err: err}
	}
	if err := WriteWAV(f, format, frames); err != nil {
		f.Close()
		return &internal_type.IOError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &internal_type.IOError{Path: path, Err: err}
	}
	return nil
}

// ReadWAVHeader parses the canonical 44-byte header written by WriteWAV.
func ReadWAVHeader(r io.Reader) (WAVHeader, error) {
	var raw [wavHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return WAVHeader{}, fmt.Errorf("reading wav header: %w", err)
	}
	if string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return WAVHeader{}, errors.New("not a RIFF/WAVE file")
	}
	if string(raw[12:16]) != "fmt " || string(raw[36:40]) != "data" {
		return WAVHeader{}, errors.New("unsupported wav layout")
	}
	if binary.LittleEndian.Uint16(raw[20:22]) != wavPCMFormat {
		return WAVHeader{}, errors.New("wav is not PCM")
	}
	return WAVHeader{
		Channels:      int(binary.LittleEndian.Uint16(raw[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(raw[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(raw[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(raw[40:44])),
	}, nil
}
