package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rcastellanos/fareacl/internal/csvio"
	"github.com/rcastellanos/fareacl/internal/list"
	"github.com/rcastellanos/fareacl/internal/version"
)

// submitResponse acknowledges an accepted reconciliation.
type submitResponse struct {
	JobID   string            `json:"jobId"`
	Reports []list.FileReport `json:"reports,omitempty"`
}

// validateResponse is the synchronous dry-run outcome.
type validateResponse struct {
	Valid   bool              `json:"valid"`
	Reports []list.FileReport `json:"reports,omitempty"`
	Result  *version.Result   `json:"result,omitempty"`
}

// rollbackRequest is the body of a rollback call.
type rollbackRequest struct {
	TargetVersion int    `json:"targetVersion"`
	UserID        string `json:"userId"`
}

// handleSubmit accepts a multipart batch of CSV files for a list,
// validates it, and starts the reconciliation as a background job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}

	files, ok := s.readFiles(w, r, def)
	if !ok {
		return
	}

	batch, reports, valid := list.BuildBatch(def, files)
	if !valid || allRejected(reports) {
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Valid: false, Reports: reports})
		return
	}

	userID := r.FormValue("userId")
	if userID == "" {
		userID = "anonymous"
	}

	jobID, err := s.runner.Start(r.Context(), "reconcile", def.Key, func(ctx context.Context) (any, error) {
		return s.reconcile(ctx, def, batch, userID)
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID, Reports: reports})
}

// handleValidate runs classification, validation and conflict resolution
// without writing anything, and returns the full result synchronously.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}

	files, ok := s.readFiles(w, r, def)
	if !ok {
		return
	}

	batch, reports, valid := list.BuildBatch(def, files)
	if !valid || allRejected(reports) {
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Valid: false, Reports: reports})
		return
	}

	res, err := s.rec.Validate(r.Context(), def, batch)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Reports: reports, Result: res})
}

// reconcile runs one reconciliation under the job runner and records
// its metrics.
func (s *Server) reconcile(ctx context.Context, def list.Definition, batch *list.Batch, userID string) (*version.Result, error) {
	s.metrics.JobsActive.Inc()
	defer s.metrics.JobsActive.Dec()

	start := time.Now()
	res, err := s.rec.Reconcile(ctx, def, batch, userID)
	s.metrics.ReconciliationDuration.WithLabelValues(def.Key).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.ReconciliationsTotal.WithLabelValues(def.Key, outcome).Inc()

	if res != nil {
		s.metrics.RowsWritten.WithLabelValues(def.Key).Add(float64(res.NewRecordsCount))
		for bucket, recs := range map[string][]list.Record{
			"added_duplicates": res.AddedDuplicates,
			"added_retired":    res.AddedRetired,
			"removed_rejected": res.RemovedRejected,
			"removed_stolen":   res.RemovedStolen,
			"changed_no_match": res.ChangedNoMatch,
		} {
			if len(recs) > 0 {
				s.metrics.ConflictsTotal.WithLabelValues(def.Key, bucket).Add(float64(len(recs)))
			}
		}
	}

	return res, err
}

// handleJobStatus reports a job's current snapshot.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.runner.Get(chi.URLParam(r, "jobID"))
	if !ok {
		s.respondError(w, r, fmt.Errorf("job %q: %w", chi.URLParam(r, "jobID"), version.ErrNotFound), 0)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCurrent reports a list's current version and counts.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}
	sum, err := s.rec.Summarize(r.Context(), def)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleRecords returns the rows of one version, current by default.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}

	v := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		var err error
		if v, err = strconv.Atoi(raw); err != nil || v < 1 {
			s.respondError(w, r, fmt.Errorf("invalid version %q", raw), http.StatusBadRequest)
			return
		}
	}

	resolved, rows, err := s.rec.Records(r.Context(), def, v)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listKey": def.Key,
		"version": resolved,
		"count":   len(rows),
		"records": rows,
	})
}

// handleRecord looks up one active record by natural key.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}
	row, err := s.rec.Lookup(r.Context(), def, chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleCompare diffs the active sets of two versions.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}

	from, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil || from < 0 {
		s.respondError(w, r, fmt.Errorf("invalid or missing from version"), http.StatusBadRequest)
		return
	}

	to := 0
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = strconv.Atoi(raw); err != nil || to < 1 {
			s.respondError(w, r, fmt.Errorf("invalid to version %q", raw), http.StatusBadRequest)
			return
		}
	} else {
		sum, err := s.rec.Summarize(r.Context(), def)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		to = sum.CurrentVersion
	}

	res, err := s.rec.Compare(r.Context(), def, from, to)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRollback deletes every version above the target. Destructive.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if req.TargetVersion < 1 {
		s.respondError(w, r, fmt.Errorf("targetVersion must be at least 1"), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	res, err := s.rec.Rollback(r.Context(), def, req.TargetVersion, req.UserID)
	if err != nil {
		s.metrics.RollbacksTotal.WithLabelValues(def.Key, "failure").Inc()
		s.respondError(w, r, err, 0)
		return
	}
	s.metrics.RollbacksTotal.WithLabelValues(def.Key, "success").Inc()
	s.metrics.RowsRolledBack.WithLabelValues(def.Key).Add(float64(res.RowsDeleted))

	writeJSON(w, http.StatusOK, res)
}

// handleHistory returns a list's version history, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}
	entries, err := s.rec.History(r.Context(), def.Key)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if entries == nil {
		entries = []version.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHistoryLatest returns the newest history entry for a list.
func (s *Server) handleHistoryLatest(w http.ResponseWriter, r *http.Request) {
	def, ok := s.listParam(w, r)
	if !ok {
		return
	}
	entry, err := s.rec.LatestHistory(r.Context(), def.Key)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleHistoryEntry returns one history entry by id.
func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.rec.HistoryByID(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allRejected reports whether classification excluded every file, which
// would otherwise commit an empty version.
func allRejected(reports []list.FileReport) bool {
	for _, rep := range reports {
		if rep.Reject == "" {
			return false
		}
	}
	return true
}

// listParam resolves the {list} URL parameter against the registry and
// writes a 404 when unknown.
func (s *Server) listParam(w http.ResponseWriter, r *http.Request) (list.Definition, bool) {
	key := chi.URLParam(r, "list")
	def, ok := list.Get(key)
	if !ok {
		s.respondError(w, r, fmt.Errorf("list %q: %w", key, version.ErrNotFound), 0)
	}
	return def, ok
}

// readFiles parses the multipart form and CSV-decodes every file under
// the "files" field. When any file fails CSV parsing the submission is
// rejected with 422 and per-file reports, the same way bad rows are.
func (s *Server) readFiles(w http.ResponseWriter, r *http.Request, def list.Definition) ([]list.File, bool) {
	maxSize := s.cfg.Ingest.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusBadRequest)
		return nil, false
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, r, fmt.Errorf("no files provided"), http.StatusBadRequest)
		return nil, false
	}

	var files []list.File
	var reports []list.FileReport
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("open %s: %w", fh.Filename, err), http.StatusBadRequest)
			return nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("read %s: %w", fh.Filename, err), http.StatusBadRequest)
			return nil, false
		}

		rows, err := csvio.ParseFile(data, def.InputColumns())
		if err != nil {
			reports = append(reports, list.FileReport{Name: fh.Filename, Reject: err.Error()})
			continue
		}
		files = append(files, list.File{Name: fh.Filename, Rows: rows})
	}

	if len(reports) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Valid: false, Reports: reports})
		return nil, false
	}

	return files, true
}
