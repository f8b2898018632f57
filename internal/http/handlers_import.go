package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// maxImportBytes bounds the uploaded payload.
const maxImportBytes = 4 << 20

type importRunResponse struct {
	RunID       string  `json:"run_id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"`
	Attempted   int     `json:"attempted"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Errors      string  `json:"errors,omitempty"`
	KeepInput   bool    `json:"keep_input"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at"`
}

func toImportRunResponse(run core.ImportRun) importRunResponse {
	resp := importRunResponse{
		RunID:     run.ID.String(),
		UserID:    run.UserID.String(),
		Status:    string(run.Status),
		Attempted: run.Attempted,
		Succeeded: run.Succeeded,
		Failed:    run.Failed,
		Errors:    run.Errors,
		KeepInput: run.Failed > 0,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		s := run.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// handleCreateImport accepts the payload either as a multipart "file" part
// or as the raw request body. The month parameter is zero-based, as the
// web client sends it, and is converted here at the boundary.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userID == nil {
		writeError(w, r, core.Invalid("user_id is required"))
		return
	}
	month, year, err := parseImportPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := readImportPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(payload) == "" {
		writeError(w, r, core.Invalid("import payload is empty"))
		return
	}

	run, deferred, err := s.imports.Submit(r.Context(), *userID, month, year, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateAnalytics()
	status := http.StatusCreated
	if deferred {
		status = http.StatusAccepted
	}
	writeJSON(w, status, toImportRunResponse(run))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	run, err := s.imports.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportRunResponse(run))
}

func parseImportPeriod(r *http.Request) (time.Month, int, error) {
	now := time.Now()
	month := now.Month()
	year := now.Year()

	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 11 {
			return 0, 0, core.Invalid("month must be between 0 and 11")
		}
		month = time.Month(m + 1)
	}
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return 0, 0, core.Invalid("invalid year")
		}
		year = y
	}
	return month, year, nil
}

func readImportPayload(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			return "", core.Invalid("invalid multipart form: " + err.Error())
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", core.Invalid("multipart form needs a \"file\" part")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImportBytes))
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
