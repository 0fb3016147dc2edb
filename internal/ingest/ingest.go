// Package ingest implements the Asset Ingestor (§4.1): it downloads
// client-supplied remote URLs into scratch storage. Grounded on the pack's
// background-queued asset ingestor, adapted here into a synchronous,
// per-request operation since enqueue needs every asset on disk before the
// job can be handed to the queue.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxDeclaredSize = 2 * 1024 * 1024 * 1024 // 2 GiB, §4.1

// RemoteRef is the client-supplied reference to a remote asset.
type RemoteRef struct {
	URL          string
	OriginalName string
	Size         *int64
	MimeType     *string
}

// LocalAsset is the result of a successful ingest: a file on disk plus the
// original client-supplied name.
type LocalAsset struct {
	ScratchPath  string
	OriginalName string
}

// Ingestor downloads remote assets into a scratch directory.
type Ingestor struct {
	ScratchDir        string
	AllowInsecureHTTP bool
	Client            *http.Client
}

// New constructs an Ingestor. scratchDir is created if missing.
func New(scratchDir string, allowInsecureHTTP bool) (*Ingestor, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Ingestor{
		ScratchDir:        scratchDir,
		AllowInsecureHTTP: allowInsecureHTTP,
		Client:            &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// Ingest implements ingest(remoteRef, label) → LocalAsset (§4.1).
func (in *Ingestor) Ingest(ctx context.Context, ref RemoteRef, label string) (*LocalAsset, error) {
	parsed, err := url.Parse(ref.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, newError(KindInvalidURL, ref.URL, err)
	}

	if err := in.checkProtocol(parsed); err != nil {
		return nil, err
	}

	if ref.Size != nil && *ref.Size > maxDeclaredSize {
		return nil, newError(KindSizeExceedsLimit, fmt.Sprintf("declared size %d exceeds %d bytes", *ref.Size, maxDeclaredSize), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, newError(KindRemoteFetchFailed, "building request", err)
	}

	resp, err := in.Client.Do(req)
	if err != nil {
		return nil, newError(KindRemoteFetchFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(KindRemoteFetchFailed, fmt.Sprintf("non-2xx status %d", resp.StatusCode), nil)
	}
	if resp.Body == nil {
		return nil, newError(KindRemoteFetchFailed, "missing response body", nil)
	}

	scratchPath := filepath.Join(in.ScratchDir, scratchFilename(label, ref.OriginalName))
	file, err := os.Create(scratchPath)
	if err != nil {
		return nil, newError(KindWriteFailed, scratchPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return nil, newError(KindWriteFailed, scratchPath, err)
	}

	return &LocalAsset{ScratchPath: scratchPath, OriginalName: ref.OriginalName}, nil
}

func (in *Ingestor) checkProtocol(u *url.URL) error {
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme == "http" && in.AllowInsecureHTTP && isLoopback(u.Hostname()) {
		return nil
	}
	return newError(KindProtocolNotAllowed, u.Scheme, nil)
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func scratchFilename(label, originalName string) string {
	ext := filepath.Ext(originalName)
	return fmt.Sprintf("%s_%s%s", slug(label), uuid.New().String(), ext)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
