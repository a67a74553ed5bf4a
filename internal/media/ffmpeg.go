package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FrameOptions controls a single still-frame extraction.
type FrameOptions struct {
	OutputDir string
	BaseName  string
	At        time.Duration
	Width     int
	Height    int
}

// FramePath is where ExtractFrame writes the frame for opts.
func FramePath(opts FrameOptions) string {
	return filepath.Join(opts.OutputDir, opts.BaseName+".jpg")
}

// FFmpeg extracts frames by shelling out to the ffmpeg binary.
type FFmpeg struct {
	binary string
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// ExtractFrame writes one JPEG frame of inputPath taken at opts.At and scaled
// to opts.Width x opts.Height. The process is killed if ctx is cancelled.
func (f *FFmpeg) ExtractFrame(ctx context.Context, inputPath string, opts FrameOptions) (string, error) {
	if opts.BaseName == "" {
		return "", fmt.Errorf("ffmpeg screenshot failed: empty output name")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("ffmpeg screenshot failed: %w", err)
	}

	outPath := FramePath(opts)
	cmd := exec.CommandContext(ctx, f.binary, frameArgs(inputPath, outPath, opts)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg screenshot failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg screenshot failed: no frame written: %w", err)
	}
	return outPath, nil
}

func frameArgs(inputPath, outPath string, opts FrameOptions) []string {
	return []string{
		"-y",
		"-ss", strconv.FormatFloat(opts.At.Seconds(), 'f', -1, 64), // seek before decoding
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height),
		"-q:v", "2", // JPEG quality (1-31, lower is better)
		outPath,
	}
}
