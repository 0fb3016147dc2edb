package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputFilename(t *testing.T) {
	name := outputFilename("vertical", "clip.mp4", 1700000000000)
	if name != "vertical_clip_1700000000000.mp4" {
		t.Fatalf("unexpected output filename: %s", name)
	}
}

func TestBuildArgs_ImageTemplateIsLooped(t *testing.T) {
	args := buildArgs("/tmp/source.mp4", "/tmp/template.png", true, "[fake]", "/tmp/out.mp4")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-loop 1 -i /tmp/template.png") {
		t.Fatalf("expected looped image input, got: %s", joined)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Fatalf("expected -shortest to clamp duration, got: %s", joined)
	}
	if !strings.Contains(joined, "-c:v libx264 -preset slow -crf 18 -pix_fmt yuv420p") {
		t.Fatalf("expected video encoding flags, got: %s", joined)
	}
}

func TestBuildArgs_VideoTemplateIsNotLooped(t *testing.T) {
	args := buildArgs("/tmp/source.mp4", "/tmp/template.mp4", false, "[fake]", "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-loop") {
		t.Fatalf("did not expect -loop for a video template, got: %s", joined)
	}
}

func TestIsStaticImage(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "t.png")
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	if err := os.WriteFile(pngPath, pngHeader, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	isImage, err := isStaticImage(pngPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isImage {
		t.Fatal("expected png header to be detected as a static image")
	}

	mp4Path := filepath.Join(dir, "t.mp4")
	if err := os.WriteFile(mp4Path, []byte("not an image at all, just junk bytes"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	isImage, err = isStaticImage(mp4Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isImage {
		t.Fatal("did not expect junk bytes to be detected as a static image")
	}
}
