package jobs

import (
	"fmt"
	"strings"
	"time"

	"studai/internal/services"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Request captures what the caller submitted.
type Request struct {
	DocumentName string `json:"document_name,omitempty"`
	Instruction  string `json:"instruction,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Destination  string `json:"destination,omitempty"`
}

// Result is populated incrementally as stages finish. VideoURL stays nil when
// rendering or the video upload failed; VideoError then holds the reason.
type Result struct {
	Script     string  `json:"script"`
	AudioURL   string  `json:"audio_url"`
	VideoURL   *string `json:"video_url"`
	Language   string  `json:"language,omitempty"`
	PDFName    string  `json:"pdf_name,omitempty"`
	PDFBlobURL string  `json:"pdf_blob_url,omitempty"`
	Topic      string  `json:"topic,omitempty"`
	VideoError string  `json:"video_error,omitempty"`
}

// Job is one end-to-end generation request.
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Stage        string     `json:"stage,omitempty"`
	StageMessage string     `json:"stage_message"`
	Request      Request    `json:"request"`
	Result       *Result    `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewJob returns a queued job stamped with now.
func NewJob(id string, req Request, now time.Time) *Job {
	now = now.UTC()
	return &Job{
		ID:           id,
		Status:       StatusQueued,
		StageMessage: "Queued",
		Request:      req,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Label is a short human description: the document name or the topic.
func (j *Job) Label() string {
	if j == nil {
		return ""
	}
	if name := strings.TrimSpace(j.Request.DocumentName); name != "" {
		return name
	}
	return strings.TrimSpace(j.Request.Instruction)
}

// Degraded reports a completed job that has no video.
func (j *Job) Degraded() bool {
	return j != nil && j.Status == StatusCompleted && j.Result != nil && j.Result.VideoURL == nil
}

// Clone returns a deep copy so callers never share mutable state with a registry.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Result != nil {
		result := *j.Result
		if j.Result.VideoURL != nil {
			url := *j.Result.VideoURL
			result.VideoURL = &url
		}
		cp.Result = &result
	}
	if j.CompletedAt != nil {
		ts := *j.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}

// EnsureResult returns the job's result, allocating it on first use.
func (j *Job) EnsureResult() *Result {
	if j.Result == nil {
		j.Result = &Result{}
	}
	return j.Result
}

// ValidTransition reports whether a job may move from one status to another.
// Staying in the same non-terminal status is allowed so stage messages can
// change while processing.
func ValidTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError
	default:
		return false
	}
}

func checkTransition(id string, from, to Status) error {
	if ValidTransition(from, to) {
		return nil
	}
	return services.Wrap(services.ErrValidation, "registry", "update",
		fmt.Sprintf("job %s cannot move from %s to %s", id, from, to), nil)
}

// applyUpdate runs mutate on a copy of current and validates the result.
func applyUpdate(current *Job, mutate func(*Job) error, now time.Time) (*Job, error) {
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	if err := checkTransition(current.ID, current.Status, next.Status); err != nil {
		return nil, err
	}
	next.UpdatedAt = now.UTC()
	if next.Status.Terminal() && next.CompletedAt == nil {
		ts := now.UTC()
		next.CompletedAt = &ts
	}
	return next, nil
}
