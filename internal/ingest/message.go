package ingest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"reel/internal/queue"
	"reel/internal/services"
)

// Request is the submission carried by a stream entry. Producers either set
// the fields directly on the entry or put the JSON form under "task".
type Request struct {
	SourcePath string `json:"source_path"`
	LibraryID  int64  `json:"library_id,omitempty"`
	Priority   *int64 `json:"priority,omitempty"`
}

// decodeRequest reads a Request from stream entry values.
func decodeRequest(values map[string]any) (Request, error) {
	var req Request
	if raw, ok := values["task"]; ok {
		text, err := asString(raw)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return req, services.Wrap(services.ErrValidation, "ingest", "decode", "invalid task JSON", err)
		}
	} else {
		source, err := optionalString(values, "source_path")
		if err != nil {
			return req, err
		}
		req.SourcePath = source
		if req.LibraryID, err = optionalInt(values, "library_id"); err != nil {
			return req, err
		}
		if _, ok := values["priority"]; ok {
			p, err := optionalInt(values, "priority")
			if err != nil {
				return req, err
			}
			req.Priority = &p
		}
	}
	req.SourcePath = strings.TrimSpace(req.SourcePath)
	if req.SourcePath == "" {
		return req, services.Wrap(services.ErrValidation, "ingest", "decode", "source_path is required", nil)
	}
	if !filepath.IsAbs(req.SourcePath) {
		return req, services.Wrap(services.ErrValidation, "ingest", "decode", fmt.Sprintf("source_path %q must be absolute", req.SourcePath), nil)
	}
	return req, nil
}

// NewTask converts the request into a remote task submission, filling the
// library when the producer did not name one.
func (r Request) NewTask(defaultLibrary int64) queue.NewTask {
	library := r.LibraryID
	if library <= 0 {
		library = defaultLibrary
	}
	return queue.NewTask{
		SourcePath: r.SourcePath,
		Priority:   r.Priority,
		Kind:       queue.KindRemote,
		LibraryID:  library,
	}
}

func asString(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case []byte:
		return string(value), nil
	default:
		return "", services.Wrap(services.ErrValidation, "ingest", "decode", fmt.Sprintf("unexpected value type %T", v), nil)
	}
}

func optionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return asString(raw)
}

func optionalInt(values map[string]any, key string) (int64, error) {
	text, err := optionalString(values, key)
	if err != nil || text == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "ingest", "decode", fmt.Sprintf("%s must be an integer", key), err)
	}
	return n, nil
}
