// Package jobstore is the authoritative record of render jobs: an in-memory
// table write-through to a KV cache and a blob object store, per SPEC_FULL.md
// §4.3. The in-memory map is the single source of truth; KV and blob are
// eventually-consistent caches used so status survives across process
// instances.
package jobstore

import "time"

// Variant is one of the three fixed render targets.
type Variant string

const (
	Vertical  Variant = "vertical"
	Square    Variant = "square"
	Landscape Variant = "landscape"
)

// VariantOrder is the fixed insertion order used when iterating templates
// present in a job's payload (§5 ordering guarantees).
var VariantOrder = []Variant{Vertical, Square, Landscape}

// Status is a job's position in the state machine (§4.4).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TemplateMetadata is probed from a template asset; alpha defaults to true on
// probe failure so the render engine prefers the safer overlay ordering.
type TemplateMetadata struct {
	HasAlphaChannel bool    `json:"hasAlphaChannel"`
	Width           *int    `json:"width,omitempty"`
	Height          *int    `json:"height,omitempty"`
	PixelFormat     *string `json:"pixelFormat,omitempty"`
}

// DefaultTemplateMetadata is the fallback used whenever probing fails.
func DefaultTemplateMetadata() TemplateMetadata {
	return TemplateMetadata{HasAlphaChannel: true}
}

// SourceVideoRef is one source video already downloaded into scratch storage.
type SourceVideoRef struct {
	ScratchPath  string `json:"-"`
	OriginalName string `json:"originalName"`
}

// TemplateRef is one template asset already downloaded into scratch storage.
type TemplateRef struct {
	ScratchPath  string           `json:"-"`
	OriginalName string           `json:"originalName"`
	Variant      Variant          `json:"variant"`
	Metadata     TemplateMetadata `json:"metadata"`
}

// Payload is the fully-ingested request body: at least one source and at
// least one template reference.
type Payload struct {
	Sources   []SourceVideoRef        `json:"sources"`
	Templates map[Variant]TemplateRef `json:"templates"`
}

// TemplatesPresent returns the templates in Payload in the fixed variant
// order, intersected with what's actually present (§5).
func (p Payload) TemplatesPresent() []TemplateRef {
	out := make([]TemplateRef, 0, len(p.Templates))
	for _, v := range VariantOrder {
		if t, ok := p.Templates[v]; ok {
			out = append(out, t)
		}
	}
	return out
}

// OutputArtifact is one finished render, named by basename only; the URL is
// derived as /output/{filename}.
type OutputArtifact struct {
	Variant  Variant `json:"variant"`
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
}

// Metrics tracks variant completion progress within a job.
type Metrics struct {
	CompletedVariants int `json:"completedVariants"`
	TotalVariants     int `json:"totalVariants"`
}

// Job is the full job record. Only the worker mutates status/progress/
// metrics/result/error; the HTTP surface only reads it (§4.3).
type Job struct {
	ID       string `json:"jobId"`
	Owner    string `json:"-"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	Error   string           `json:"error,omitempty"`
	Result  []OutputArtifact `json:"result,omitempty"`
	Metrics Metrics          `json:"metrics"`
	Payload Payload          `json:"-"`
}

// Clone returns a deep-enough copy so that handing a Job out of the store
// never lets a caller observe (or cause) a torn mutation.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		clone.FinishedAt = &t
	}
	clone.Result = append([]OutputArtifact(nil), j.Result...)
	return &clone
}

// ScratchPaths returns every scratch file referenced by the job's payload,
// for the worker's terminal-state cleanup step.
func (j *Job) ScratchPaths() []string {
	paths := make([]string, 0, len(j.Payload.Sources)+len(j.Payload.Templates))
	for _, s := range j.Payload.Sources {
		paths = append(paths, s.ScratchPath)
	}
	for _, t := range j.Payload.Templates {
		paths = append(paths, t.ScratchPath)
	}
	return paths
}
