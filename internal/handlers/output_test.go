package handlers

import "testing"

func TestIsSafeFilename(t *testing.T) {
	cases := map[string]bool{
		"vertical_clip_123.mp4": true,
		"../etc/passwd":         false,
		"sub/dir.mp4":           false,
		"sub\\dir.mp4":          false,
		"":                      false,
		"..":                    false,
	}

	for name, want := range cases {
		if got := isSafeFilename(name); got != want {
			t.Errorf("isSafeFilename(%q) = %v, want %v", name, got, want)
		}
	}
}
