package render

import (
	"strings"
	"testing"

	"videotemplate-render-service/internal/jobstore"
)

func TestBuildFilterComplex_SquareIsLeftAligned(t *testing.T) {
	out, err := buildFilterComplex(jobstore.Square, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "pad=1080:1080:0:(oh-ih)/2") {
		t.Fatalf("expected left-aligned pad (x=0) in square stage, got: %s", out)
	}
}

func TestBuildFilterComplex_VerticalAndLandscapeAreCentered(t *testing.T) {
	vertical, err := buildFilterComplex(jobstore.Vertical, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(vertical, "pad=1080:1920:(ow-iw)/2:(oh-ih)/2") {
		t.Fatalf("expected centered pad in vertical stage, got: %s", vertical)
	}

	landscape, err := buildFilterComplex(jobstore.Landscape, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(landscape, "pad=1920:1080:(ow-iw)/2:(oh-ih)/2") {
		t.Fatalf("expected centered pad in landscape stage, got: %s", landscape)
	}
}

func TestBuildFilterComplex_OverlayOrderFollowsAlpha(t *testing.T) {
	withAlpha, err := buildFilterComplex(jobstore.Vertical, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(withAlpha, "[src][tmpl]overlay=0:0[outv]") {
		t.Fatalf("expected template-on-top overlay when template has alpha, got: %s", withAlpha)
	}

	withoutAlpha, err := buildFilterComplex(jobstore.Vertical, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(withoutAlpha, "[tmpl][src]overlay=0:0[outv]") {
		t.Fatalf("expected source-on-top overlay when template is opaque, got: %s", withoutAlpha)
	}
}

func TestBuildFilterComplex_UnknownVariant(t *testing.T) {
	if _, err := buildFilterComplex(jobstore.Variant("diagonal"), false); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestBuildFilterComplex_AllScaleStagesUseLanczos(t *testing.T) {
	for _, variant := range jobstore.VariantOrder {
		out, err := buildFilterComplex(variant, true)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", variant, err)
		}
		if got := strings.Count(out, "flags=lanczos"); got != 2 {
			t.Fatalf("%s: expected both scale stages to carry flags=lanczos, got %d occurrences in: %s", variant, got, out)
		}
	}
}
