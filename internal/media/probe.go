// Package media probes template assets for the geometry the render engine
// needs: width, height, pixel format, and whether the asset carries an
// alpha channel. Static images are decoded in-process (internal/imaging);
// anything else is probed via an ffprobe subprocess.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"videotemplate-render-service/internal/imaging"
	"videotemplate-render-service/internal/jobstore"
)

// Prober runs ffprobe subprocesses against media files.
type Prober struct {
	FFprobeBin string
}

// NewProber constructs a Prober bound to the configured ffprobe binary.
func NewProber(ffprobeBin string) *Prober {
	return &Prober{FFprobeBin: ffprobeBin}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	PixFmt    string `json:"pix_fmt"`
}

var alphaMarkers = []string{"alpha", "rgba", "bgra", "argb", "yuva"}

func hasAlphaPixFmt(pixFmt string) bool {
	lower := strings.ToLower(pixFmt)
	if strings.HasSuffix(lower, "a") {
		return true
	}
	for _, marker := range alphaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ProbeTemplate implements §4.1's probeTemplate operation. On any failure it
// returns the default metadata (alpha = true) and logs a warning: probing is
// best-effort and must never fail the enqueue.
func (p *Prober) ProbeTemplate(ctx context.Context, path, label string) jobstore.TemplateMetadata {
	data, err := os.ReadFile(path)
	if err == nil {
		if probe, probeErr := imaging.ProbeStaticImage(data); probeErr == nil {
			width, height, pixFmt := probe.Width, probe.Height, probe.Format
			return jobstore.TemplateMetadata{
				HasAlphaChannel: probe.HasAlpha,
				Width:           &width,
				Height:          &height,
				PixelFormat:     &pixFmt,
			}
		}
	}

	meta, err := p.probeWithFFprobe(ctx, path)
	if err != nil {
		slog.Warn("probeTemplate: falling back to default metadata", "label", label, "path", path, "error", err)
		return jobstore.DefaultTemplateMetadata()
	}
	return meta
}

func (p *Prober) probeWithFFprobe(ctx context.Context, path string) (jobstore.TemplateMetadata, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,pix_fmt",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.FFprobeBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return jobstore.TemplateMetadata{}, probeError(err, stderr.String())
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return jobstore.TemplateMetadata{}, err
	}
	if len(parsed.Streams) == 0 {
		return jobstore.TemplateMetadata{}, errNoVideoStream
	}

	stream := parsed.Streams[0]
	width, height, pixFmt := stream.Width, stream.Height, stream.PixFmt

	return jobstore.TemplateMetadata{
		HasAlphaChannel: hasAlphaPixFmt(pixFmt),
		Width:           &width,
		Height:          &height,
		PixelFormat:     &pixFmt,
	}, nil
}
