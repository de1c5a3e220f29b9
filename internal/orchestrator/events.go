package orchestrator

// Connected is sent once per connection.
type Connected struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// SessionStarted echoes the options a session runs with.
type SessionStarted struct {
	Type           string `json:"type"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	ShowTimestamps bool   `json:"show_timestamps"`
	VoiceGender    string `json:"voice_gender"`
}

// Transcription carries one interim or final recognition result.
// Translation and Confidence are only present on final results.
type Transcription struct {
	Type             string   `json:"type"`
	Original         string   `json:"original"`
	Translation      *string  `json:"translation,omitempty"`
	TranslationError string   `json:"translation_error,omitempty"`
	IsFinal          bool     `json:"is_final"`
	Confidence       *float32 `json:"confidence,omitempty"`
	Timestamp        string   `json:"timestamp"`
	ChirpTimestamp   *float64 `json:"chirp_timestamp,omitempty"`
}

// TTSAudio carries base64 MP3 audio for a synthesis request.
type TTSAudio struct {
	Type        string `json:"type"`
	Audio       string `json:"audio"`
	Format      string `json:"format"`
	VoiceGender string `json:"voice_gender"`
}

// SessionStopped acknowledges stop_session.
type SessionStopped struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error reports a failure to the client.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error message.
func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}
