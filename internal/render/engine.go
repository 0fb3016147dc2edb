// Package render drives the ffmpeg subprocess that composites a source video
// with a template into one of the three output variants (§4.2). The ffmpeg
// invocation is built in two steps: buildFilterComplex joins the per-input
// scale/pad/overlay stages into one filter-graph string, then buildArgs
// assembles the argv vector immediately before exec.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"videotemplate-render-service/internal/imaging"
	"videotemplate-render-service/internal/jobstore"
)

// Engine renders composites via an ffmpeg subprocess.
type Engine struct {
	FFmpegBin  string
	ScratchDir string
}

// New constructs an Engine bound to the configured ffmpeg binary and output
// scratch directory. scratchDir is created if missing.
func New(ffmpegBin, scratchDir string) (*Engine, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create render scratch dir: %w", err)
	}
	return &Engine{FFmpegBin: ffmpegBin, ScratchDir: scratchDir}, nil
}

// CheckBinary verifies the configured ffmpeg binary is reachable. Called once
// at startup; cmd/server logs a failure as a warning and keeps serving, so a
// missing binary then shows up as failed renders.
func (e *Engine) CheckBinary(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, e.FFmpegBin, "-version")
	if err := cmd.Run(); err != nil {
		return newError(KindMissingBinary, e.FFmpegBin, err)
	}
	return nil
}

// Input describes one side of a composite: a file on disk plus whatever the
// engine needs to know to place it in the filter graph.
type Input struct {
	Path         string
	OriginalName string
	Metadata     jobstore.TemplateMetadata
}

// Render implements render(ctx, source, template, variant) → outputPath
// (§4.2). The output is written under the engine's scratch directory and
// named {variant}_{sourceBasename}_{timestampMs}.mp4.
func (e *Engine) Render(ctx context.Context, source, template Input, variant jobstore.Variant, nowUnixMilli int64) (string, error) {
	filterComplex, err := buildFilterComplex(variant, template.Metadata.HasAlphaChannel)
	if err != nil {
		return "", newError(KindPipelineFailed, "building filter graph", err)
	}

	isImage, err := isStaticImage(template.Path)
	if err != nil {
		return "", newError(KindIOFailure, template.Path, err)
	}

	outputPath := filepath.Join(e.ScratchDir, outputFilename(variant, source.OriginalName, nowUnixMilli))

	args := buildArgs(source.Path, template.Path, isImage, filterComplex, outputPath)

	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", pipelineError(fmt.Sprintf("ffmpeg failed for variant %s", variant), err, stderr.String())
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return "", newError(KindIOFailure, "ffmpeg produced no output", err)
	}

	return outputPath, nil
}

func buildArgs(sourcePath, templatePath string, templateIsImage bool, filterComplex, outputPath string) []string {
	args := []string{"-y", "-i", sourcePath}

	if templateIsImage {
		// Loop the single still frame so the composite runs the full length
		// of the source; duration is clamped to the shortest input below.
		args = append(args, "-loop", "1", "-i", templatePath)
	} else {
		args = append(args, "-i", templatePath)
	}

	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "[outv]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	)

	return args
}

func outputFilename(variant jobstore.Variant, sourceOriginalName string, nowUnixMilli int64) string {
	base := filepath.Base(sourceOriginalName)
	ext := filepath.Ext(base)
	base = base[:len(base)-len(ext)]
	return fmt.Sprintf("%s_%s_%d.mp4", variant, base, nowUnixMilli)
}

func isStaticImage(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 32)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return false, err
	}

	format := imaging.DetectFormat(header[:n])
	return imaging.StaticFormats[format], nil
}

// Now is a small seam so callers can derive a timestamp without the engine
// itself calling time.Now (kept out of this package's hot path so render unit
// tests can pass a fixed value instead).
func Now() int64 { return time.Now().UnixMilli() }
