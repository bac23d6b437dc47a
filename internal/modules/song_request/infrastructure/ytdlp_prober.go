package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

// Compile-time check that YTDLPProber implements ports.DurationProber.
var _ ports.DurationProber = (*YTDLPProber)(nil)

// YTDLPProber reads media durations with yt-dlp without downloading anything.
type YTDLPProber struct {
	path    string
	timeout time.Duration
}

// NewYTDLPProber creates a new YTDLPProber.
func NewYTDLPProber(path string, timeout time.Duration) *YTDLPProber {
	if path == "" {
		path = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YTDLPProber{path: path, timeout: timeout}
}

// Probe returns the duration of the media at url.
func (p *YTDLPProber) Probe(ctx context.Context, url string) (time.Duration, error) {
	path, err := exec.LookPath(p.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ports.ErrExecutableNotFound, p.path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, // #nosec G204
		"--print", "duration",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		url,
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("yt-dlp failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("failed to run yt-dlp: %w", err)
	}

	return parseProbeOutput(string(out))
}

// parseProbeOutput parses the first line printed by yt-dlp as seconds.
func parseProbeOutput(out string) (time.Duration, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	line = strings.TrimSpace(line)
	if line == "" || line == "NA" {
		return 0, errors.New("duration not available")
	}

	seconds, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", line, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("invalid duration %q", line)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
