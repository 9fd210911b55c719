package config

import "errors"

var (
	ErrMissingTranscriptionURL = errors.New("transcription endpoint URL is required (set TRANSCRIPTION_URL env var)")
	ErrInvalidChunkSize        = errors.New("audio chunk size must be a positive power of two")
)
