package api

import "studai/internal/jobs"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a generation job in a transport-friendly format.
type Job struct {
	ID           string       `json:"job_id"`
	Status       string       `json:"status"`
	Stage        string       `json:"stage,omitempty"`
	StageMessage string       `json:"stage_message"`
	Label        string       `json:"label,omitempty"`
	Result       *jobs.Result `json:"result,omitempty"`
	Error        string       `json:"error,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
	CompletedAt  string       `json:"completed_at,omitempty"`
}

// SubmitResponse acknowledges an accepted generation request.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NotificationResponse reports the outcome of a test alert.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// JobListResponse wraps live jobs, newest first.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// HistoryEntry is an archived job.
type HistoryEntry struct {
	Job
	ArchivedAt string `json:"archived_at"`
}

// GenerateMessage is the request frame a client sends on /ws/generate.
type GenerateMessage struct {
	PDFName             string `json:"pdf_name,omitempty"`
	PDFURL              string `json:"pdf_url,omitempty"`
	UserAdditionalInput string `json:"user_additional_input"`
	Gender              string `json:"gender,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running       bool           `json:"running"`
	StartedAt     string         `json:"started_at,omitempty"`
	ActiveJobs    int            `json:"active_jobs"`
	RenderWorkers int            `json:"render_workers"`
	RenderInUse   int            `json:"render_in_use"`
	JobStats      map[string]int `json:"job_stats"`
	LastError     string         `json:"last_error,omitempty"`
	LastJob       *Job           `json:"last_job,omitempty"`
	StageHealth   []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	RegistryBackend string             `json:"registry_backend"`
	StorageDriver   string             `json:"storage_driver"`
	HistoryPath     string             `json:"history_path,omitempty"`
	LockFilePath    string             `json:"lock_file_path"`
	Workflow        WorkflowStatus     `json:"workflow"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}
