package orchestrator

import "time"

const (
	DefaultSourceLanguage = "en-US"
	DefaultTargetLanguage = "Spanish"
	DefaultVoiceGender    = "NEUTRAL"

	// Sender wake-up interval while the queue is empty, so the stop flag is
	// re-checked promptly.
	senderPollInterval = 100 * time.Millisecond

	channels = 1

	stoppedMessage = "Session stopped"
)

// Outbound message types.
const (
	TypeConnected      = "connected"
	TypeSessionStarted = "session_started"
	TypeTranscription  = "transcription"
	TypeTTSAudio       = "tts_audio"
	TypeSessionStopped = "session_stopped"
	TypeError          = "error"
)
