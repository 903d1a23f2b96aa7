// Package audioproc shapes audio inputs before transcription by shelling
// out to ffmpeg. It only ever produces new file handles; sources are
// never modified.
package audioproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client produces derived audio handles from a source handle.
type Client interface {
	// Trim extracts [startSec, endSec) from src into a new file.
	Trim(ctx context.Context, src string, startSec, endSec float64) (string, error)
	// SpeedUp produces a tempo-changed copy of src.
	SpeedUp(ctx context.Context, src string, factor float64) (string, error)
}

// FFmpeg runs the ffmpeg binary. OutDir defaults to the source directory.
type FFmpeg struct {
	Binary string
	OutDir string
}

func NewFFmpeg(outDir string) *FFmpeg {
	return &FFmpeg{Binary: "ffmpeg", OutDir: outDir}
}

func (f *FFmpeg) Trim(ctx context.Context, src string, startSec, endSec float64) (string, error) {
	if endSec <= startSec {
		return "", fmt.Errorf("invalid trim range %v–%v", startSec, endSec)
	}

	out := f.derivedPath(src, fmt.Sprintf("seg%d", int(startSec)))

	// ffmpeg -y -ss <start> -t <dur> -i src -c copy out
	cmd := exec.CommandContext(ctx, f.binary(),
		"-y",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(endSec-startSec),
		"-i", src,
		"-c", "copy",
		out,
	)
	if err := run(cmd); err != nil {
		return "", fmt.Errorf("trim %s [%v–%v]: %w", src, startSec, endSec, err)
	}
	return out, nil
}

func (f *FFmpeg) SpeedUp(ctx context.Context, src string, factor float64) (string, error) {
	if factor <= 0 {
		return "", fmt.Errorf("invalid speed factor %v", factor)
	}

	out := f.derivedPath(src, fmt.Sprintf("x%g", factor))

	// atempo only accepts 0.5..2.0 per filter instance; chain for more.
	cmd := exec.CommandContext(ctx, f.binary(),
		"-y",
		"-i", src,
		"-filter:a", atempoChain(factor),
		out,
	)
	if err := run(cmd); err != nil {
		return "", fmt.Errorf("speed up %s x%g: %w", src, factor, err)
	}
	return out, nil
}

func (f *FFmpeg) binary() string {
	if f.Binary != "" {
		return f.Binary
	}
	return "ffmpeg"
}

func (f *FFmpeg) derivedPath(src, suffix string) string {
	dir := f.OutDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, suffix, ext))
}

func run(cmd *exec.Cmd) error {
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func formatSeconds(sec float64) string {
	return fmt.Sprintf("%.3f", sec)
}

func atempoChain(factor float64) string {
	var filters []string
	for factor > 2.0 {
		filters = append(filters, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		filters = append(filters, "atempo=0.5")
		factor /= 0.5
	}
	filters = append(filters, fmt.Sprintf("atempo=%g", factor))
	return strings.Join(filters, ",")
}

// RemoveHandles deletes derived audio files, ignoring ones already gone.
// Used by the delete cascade.
func RemoveHandles(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return firstErr
}
