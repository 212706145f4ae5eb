// Package transcode wraps a local ffmpeg binary as a pass/fail codec
// service. It uses exec.CommandContext with explicit argument slices.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"fbzone/internal/media"
)

// FFmpeg extracts audio tracks with a local ffmpeg.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// New returns an FFmpeg codec. binary is a name looked up in PATH or an
// absolute path; empty means "ffmpeg".
func New(binary string, logger *slog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{binary: binary, logger: logger}
}

// audioArgs builds the ffmpeg argument list for an MP3 extraction.
func audioArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-ar", "44100",
		"-y", // Overwrite output
		"-loglevel", "error",
		output,
	}
}

// ExtractAudio converts input into a 192k MP3 at output. A missing binary
// or encoder is reported as media.ErrCodecUnavailable.
func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	ffmpegPath, err := exec.LookPath(f.binary)
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found in PATH: %v", media.ErrCodecUnavailable, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpegPath, audioArgs(input, output)...)
	cmd.Stderr = &stderr

	f.logger.Debug("running ffmpeg", "input", input, "output", output)

	if err := cmd.Run(); err != nil {
		os.Remove(output)
		msg := strings.TrimSpace(stderr.String())
		if ctx.Err() != nil {
			return fmt.Errorf("conversion timed out: %w", ctx.Err())
		}
		if strings.Contains(msg, "Unknown encoder") || strings.Contains(msg, "Encoder not found") {
			return fmt.Errorf("%w: %s", media.ErrCodecUnavailable, msg)
		}
		return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, msg)
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("audio file was not created")
	}
	return nil
}
