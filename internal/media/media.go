// Package media validates local audio files and wraps the ffmpeg, ffprobe and
// yt-dlp tools used to prepare transcription input.
package media

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/dazdaz/gemini/internal/errors"
)

// SupportedFormats lists accepted audio extensions in display order.
var SupportedFormats = []string{".mp3", ".wav", ".aac", ".flac", ".m4a", ".ogg", ".aiff"}

var mimeTypes = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".aiff": "audio/aiff",
}

const (
	defaultTitle  = "youtube_audio"
	maxNameLength = 180
)

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\s.\-]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// ValidateFile checks that path is an existing regular file with a supported
// extension and returns its size in bytes.
func ValidateFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, apperrors.Newf(apperrors.CodeNotFound, "File not found: %s", path)
		}
		return 0, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "Not a file: %s", path)
	}
	if _, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; !ok {
		return 0, apperrors.Newf(apperrors.CodeAudioInvalidFormat, "Unsupported format. Supported: %s", strings.Join(SupportedFormats, ", "))
	}
	return info.Size(), nil
}

// MIMEType returns the audio MIME type for path's extension, audio/mp3 when
// unknown.
func MIMEType(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "audio/mp3"
}

// SanitizeFilename makes a title safe for use as a file name.
func SanitizeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > maxNameLength {
		s = string(r[:maxNameLength])
	}
	if s == "" {
		return defaultTitle
	}
	return s
}

// ValidateYouTubeURL rejects empty input and URLs that are not YouTube links.
func ValidateYouTubeURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "Please provide a YouTube URL")
	}
	if !strings.Contains(url, "youtube.com") && !strings.Contains(url, "youtu.be") {
		return apperrors.New(apperrors.CodeInvalidArgument, "Invalid YouTube URL. Please provide a valid YouTube video URL.")
	}
	return nil
}
