package server

import "time"

const (
	// Base64 audio frames are larger than the websocket default of 32KiB.
	ReadLimit = 4 << 20

	WriteTimeout = 10 * time.Second
)

// Inbound message types.
const (
	typeStartSession = "start_session"
	typeAudioData    = "audio_data"
	typeStopSession  = "stop_session"
	typeRequestTTS   = "request_tts"
)
