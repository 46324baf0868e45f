// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"time"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
)

const (
	CaptureSampleRate    = 44100
	CaptureChannels      = 1
	CaptureBitsPerSample = 16
	CaptureChunkSamples  = 4096
)

// CAPTURE_AUDIO_FORMAT is the fixed microphone format: 44.1kHz mono LINEAR16
// read 4096 samples at a time.
var CAPTURE_AUDIO_FORMAT = NewCaptureAudioFormat()

func NewCaptureAudioFormat() internal_type.AudioFormat {
	return internal_type.AudioFormat{
		SampleRate:    CaptureSampleRate,
		Channels:      CaptureChannels,
		BitsPerSample: CaptureBitsPerSample,
		ChunkSamples:  CaptureChunkSamples,
	}
}

// ChunkDuration is the wall-clock length of one chunk.
func ChunkDuration(f internal_type.AudioFormat) time.Duration {
	return time.Duration(f.ChunkSamples) * time.Second / time.Duration(f.SampleRate)
}

// PCMDuration converts a PCM byte count to its playback duration.
func PCMDuration(f internal_type.AudioFormat, n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}
