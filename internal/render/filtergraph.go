package render

import (
	"fmt"

	"videotemplate-render-service/internal/jobstore"
)

type canvasSize struct {
	Width, Height int
}

var canvases = map[jobstore.Variant]canvasSize{
	jobstore.Vertical:  {1080, 1920},
	jobstore.Square:    {1080, 1080},
	jobstore.Landscape: {1920, 1080},
}

// buildFilterComplex renders the three-label scale→pad→overlay composition
// described in SPEC_FULL.md §4.2. Input 0 is always the source video; input 1
// is always the template (image or moving picture).
func buildFilterComplex(variant jobstore.Variant, hasAlpha bool) (string, error) {
	canvas, ok := canvases[variant]
	if !ok {
		return "", fmt.Errorf("unknown variant %q", variant)
	}

	sourceStage := sourcePadStage(variant, canvas)
	templateStage := fmt.Sprintf(
		"[1:v]scale=%d:%d:force_original_aspect_ratio=decrease:flags=lanczos,setsar=1,format=rgba[tmpl]",
		canvas.Width, canvas.Height,
	)

	var overlayStage string
	if hasAlpha {
		// template carries transparency: it sits on top of the source canvas.
		overlayStage = "[src][tmpl]overlay=0:0[outv]"
	} else {
		// opaque template: the source is the top layer.
		overlayStage = "[tmpl][src]overlay=0:0[outv]"
	}

	return sourceStage + ";" + templateStage + ";" + overlayStage, nil
}

func sourcePadStage(variant jobstore.Variant, canvas canvasSize) string {
	switch variant {
	case jobstore.Vertical:
		return fmt.Sprintf(
			"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease:flags=lanczos,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=rgba[src]",
			canvas.Width, canvas.Height, canvas.Width, canvas.Height,
		)
	case jobstore.Square:
		// Deliberately left-aligned (x=0, not centered) — a product contract
		// documented in SPEC_FULL.md §4.2, not a bug.
		return fmt.Sprintf(
			"[0:v]scale=-2:%d:flags=lanczos,pad=%d:%d:0:(oh-ih)/2,setsar=1,format=rgba[src]",
			canvas.Height, canvas.Width, canvas.Height,
		)
	case jobstore.Landscape:
		return fmt.Sprintf(
			"[0:v]scale=-2:%d:flags=lanczos,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=rgba[src]",
			canvas.Height, canvas.Width, canvas.Height,
		)
	default:
		return ""
	}
}
