package media

import (
	"errors"
	"fmt"
)

var errNoVideoStream = errors.New("no video stream found")

// probeError wraps an ffprobe subprocess failure with its stderr tail,
// matching the render engine's PipelineFailed error convention.
func probeError(err error, stderr string) error {
	tail := stderr
	if len(tail) > 2000 {
		tail = tail[len(tail)-2000:]
	}
	return fmt.Errorf("ffprobe failed: %w\nstderr: %s", err, tail)
}
