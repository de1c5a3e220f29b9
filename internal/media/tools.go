package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/dazdaz/gemini/internal/errors"
	"github.com/dazdaz/gemini/internal/trace"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Tools wraps the media binaries.
type Tools struct {
	Run         Runner
	FFmpeg      string
	FFprobe     string
	YTDLP       string
	DownloadDir string
}

// NewTools returns Tools using binaries from PATH.
func NewTools(downloadDir string) *Tools {
	if downloadDir == "" {
		downloadDir = "downloads"
	}
	return &Tools{
		Run:         ExecRunner,
		FFmpeg:      "ffmpeg",
		FFprobe:     "ffprobe",
		YTDLP:       "yt-dlp",
		DownloadDir: downloadDir,
	}
}

// Duration returns the audio length in seconds, or 0 if it can't be measured.
func (t *Tools) Duration(ctx context.Context, path string) float64 {
	out, err := t.Run(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		trace.Logger(ctx).Warn("could not get audio duration", "path", path, "error", err)
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		trace.Logger(ctx).Warn("could not parse audio duration", "path", path, "output", string(out))
		return 0
	}
	return secs
}

// ParseClock parses an MM:SS offset.
func ParseClock(s string) (time.Duration, error) {
	invalid := apperrors.Newf(apperrors.CodeInvalidArgument, "Invalid time format: %s. Use MM:SS format.", s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, invalid
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, invalid
	}
	secs, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, invalid
	}
	return time.Duration(minutes*60+secs) * time.Second, nil
}

// TrimRange resolves optional MM:SS bounds against the audio duration.
func TrimRange(start, end string, duration time.Duration) (time.Duration, time.Duration, error) {
	var from time.Duration
	to := duration
	var err error
	if start != "" {
		if from, err = ParseClock(start); err != nil {
			return 0, 0, err
		}
	}
	if end != "" {
		if to, err = ParseClock(end); err != nil {
			return 0, 0, err
		}
	}
	if from >= to {
		return 0, 0, apperrors.New(apperrors.CodeInvalidArgument, "Start time must be before end time")
	}
	if from > duration {
		return 0, 0, apperrors.New(apperrors.CodeInvalidArgument, "Start time exceeds audio duration")
	}
	return from, to, nil
}

// Trim cuts [start, end) out of path into a temporary MP3 and returns its
// path. The caller removes the file.
func (t *Tools) Trim(ctx context.Context, path, start, end string) (string, error) {
	total := time.Duration(t.Duration(ctx, path) * float64(time.Second))
	from, to, err := TrimRange(start, end, total)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "trimmed_*.mp3")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "create trim file")
	}
	_ = tmp.Close()

	_, err = t.Run(ctx, t.FFmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ss", seconds(from),
		"-to", seconds(to),
		"-vn", "-acodec", "libmp3lame",
		tmp.Name())
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeAudioInvalidFormat, "trim audio")
	}
	trace.Logger(ctx).Info("audio trimmed", "seconds", (to - from).Seconds())
	return tmp.Name(), nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// DownloadYouTubeAudio fetches the best audio stream of url as MP3 and moves
// it to target. An existing directory target receives <title>.mp3, other
// targets get an .mp3 suffix, and an empty target means
// DownloadDir/<title>.mp3.
func (t *Tools) DownloadYouTubeAudio(ctx context.Context, url, target string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "youtube_download")
	defer span.End()
	log := trace.Logger(ctx)
	log.Info("preparing youtube audio download", "url", url)

	tmpDir, err := os.MkdirTemp("", "yt_audio_")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "create download dir")
	}
	defer os.RemoveAll(tmpDir)

	out, err := t.Run(ctx, t.YTDLP,
		"--format", "bestaudio/best",
		"--output", filepath.Join(tmpDir, "%(id)s.%(ext)s"),
		"--no-progress", "--no-warnings",
		"--extractor-args", "youtube:player_client=android,web",
		"--extract-audio", "--audio-format", "mp3", "--audio-quality", "192K",
		"--print", "after_move:%(title,id|youtube_audio)s",
		url)
	if err != nil {
		span.SetAttr("error", err.Error())
		return "", apperrors.Wrap(err, apperrors.CodeDownloadFailed, "Failed to download YouTube audio")
	}

	title := firstLine(out)
	if title == "" || title == "NA" {
		title = defaultTitle
	}
	dest := t.resolveTarget(target, SanitizeFilename(title))

	src, err := newestMP3(tmpDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "create target dir")
	}
	if err := moveFile(src, dest); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "move downloaded audio")
	}
	log.Info("downloaded mp3", "path", dest)
	return dest, nil
}

func (t *Tools) resolveTarget(target, safeTitle string) string {
	if target == "" {
		return filepath.Join(t.DownloadDir, safeTitle+".mp3")
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, safeTitle+".mp3")
	}
	if ext := filepath.Ext(target); strings.ToLower(ext) != ".mp3" {
		return strings.TrimSuffix(target, ext) + ".mp3"
	}
	return target
}

func newestMP3(dir string) (string, error) {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.mp3"))
	if len(matches) == 0 {
		return "", apperrors.New(apperrors.CodeDownloadFailed, "yt-dlp did not produce an MP3 file. Ensure ffmpeg is installed and accessible.")
	}
	mtime := func(p string) time.Time {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}
		}
		return info.ModTime()
	}
	sort.Slice(matches, func(i, j int) bool { return mtime(matches[i]).After(mtime(matches[j])) })
	return matches[0], nil
}

// moveFile renames, falling back to copy across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
