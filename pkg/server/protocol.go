package server

import (
	"encoding/json"
)

// WebSocket message types
const (
	MessageTypeAudioFormat = "audio_format"
	MessageTypeError       = "error"
)

// AudioFormatMessage is sent as the first message to inform clients about
// the format of the binary frames that follow.
type AudioFormatMessage struct {
	Type         string `json:"type"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
	SampleFormat string `json:"sample_format"`
}

// ErrorMessage is sent when an error occurs
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// CreateAudioFormatMessage creates the initial audio format message. The
// capture pipeline downmixes to mono s16le.
func CreateAudioFormatMessage(sampleRate int) ([]byte, error) {
	msg := AudioFormatMessage{
		Type:         MessageTypeAudioFormat,
		SampleRate:   sampleRate,
		Channels:     1,
		SampleFormat: "s16le",
	}

	return json.Marshal(msg)
}

// CreateErrorMessage creates an error message
func CreateErrorMessage(errMsg string, code int) ([]byte, error) {
	msg := ErrorMessage{
		Type:  MessageTypeError,
		Error: errMsg,
		Code:  code,
	}

	return json.Marshal(msg)
}
