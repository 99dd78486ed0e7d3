package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage tags a progress event with the pipeline boundary it reports.
type Stage string

const (
	StageStart            Stage = "start"
	StagePDFExtraction    Stage = "pdf_extraction"
	StageScriptGeneration Stage = "script_generation"
	StageTTSGeneration    Stage = "tts_generation"
	StageAudioUpload      Stage = "audio_upload"
	StageVideoEditing     Stage = "video_editing"
	StageVideoRendering   Stage = "video_rendering"
	StageUploading        Stage = "uploading"
	StageCompleted        Stage = "completed"
	StageError            Stage = "error"
)

// Terminal reports whether no further events follow this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Event is one progress notification. Fields are flattened into the top-level
// JSON object next to the fixed keys.
type Event struct {
	Stage     Stage
	Message   string
	JobID     string
	Timestamp time.Time
	Fields    map[string]any
}

var reservedKeys = map[string]struct{}{
	"stage": {}, "message": {}, "job_id": {}, "timestamp": {},
}

// With returns a copy of the event with key set in Fields.
func (e Event) With(key string, value any) Event {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	e.Fields = fields
	return e
}

// MarshalJSON flattens Fields into the event object.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["stage"] = e.Stage
	out["message"] = e.Message
	if e.JobID != "" {
		out["job_id"] = e.JobID
	}
	if !e.Timestamp.IsZero() {
		out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON; unknown keys land in Fields.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{}
	if v, ok := raw["stage"].(string); ok {
		e.Stage = Stage(v)
	}
	if v, ok := raw["message"].(string); ok {
		e.Message = v
	}
	if v, ok := raw["job_id"].(string); ok {
		e.JobID = v
	}
	if v, ok := raw["timestamp"].(string); ok && v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("event timestamp: %w", err)
		}
		e.Timestamp = ts
	}
	for k, v := range raw {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[k] = v
	}
	return nil
}
