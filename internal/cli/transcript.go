package cli

import "strings"

// whisper.cpp prints this token for audio without recognizable speech.
const blankAudioToken = "[BLANK_AUDIO]"

func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, blankAudioToken)
}

func noSpeechHint() string {
	return "No speech detected. The video may have no spoken audio, or try --language to pin the spoken language."
}
