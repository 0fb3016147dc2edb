package handlers

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"videotemplate-render-service/internal/utils"
)

// OutputHandler serves rendered files out of the shared scratch/output
// directory (§6 Download).
type OutputHandler struct {
	OutputDir string
}

// isSafeFilename rejects path-traversal attempts: no "..", no path
// separators. Filenames are basenames only (§3 OutputArtifact).
func isSafeFilename(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// Download handles GET /output/{filename}, honoring Range requests.
func (h *OutputHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	if !isSafeFilename(filename) {
		utils.SendValidationError(c, fmt.Errorf("invalid filename: %s", filename))
		return
	}

	path := filepath.Join(h.OutputDir, filename)
	file, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "message": "no such output file"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	c.Header("Accept-Ranges", "bytes")
	http.ServeContent(c.Writer, c.Request, filename, info.ModTime(), file)
}

// BatchDownloadRequest is POST /download/batch's request body.
type BatchDownloadRequest struct {
	Filenames   []string `json:"filenames" binding:"required"`
	ArchiveName string   `json:"archiveName"`
}

// BatchDownload handles POST /download/batch: streams a ZIP of the named
// files, skipping (and logging) any name that fails validation or isn't
// found.
func (h *OutputHandler) BatchDownload(c *gin.Context) {
	var req BatchDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	archiveName := req.ArchiveName
	if archiveName == "" {
		archiveName = "renders.zip"
	}
	if !strings.HasSuffix(archiveName, ".zip") {
		archiveName += ".zip"
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", "attachment; filename=\""+archiveName+"\"")

	zw := zip.NewWriter(c.Writer)
	defer zw.Close()

	for _, name := range req.Filenames {
		if !isSafeFilename(name) {
			slog.Warn("batch download: skipping unsafe filename", "filename", name)
			continue
		}

		path := filepath.Join(h.OutputDir, name)
		if err := addFileToZip(zw, path, name); err != nil {
			slog.Warn("batch download: skipping file", "filename", name, "error", err)
			continue
		}
	}
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer, err := zw.Create(name)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}

