package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rcastellanos/fareacl/internal/config"
	"github.com/rcastellanos/fareacl/internal/jobs"
	"github.com/rcastellanos/fareacl/internal/list"
	_ "github.com/rcastellanos/fareacl/internal/list/lists" // register list definitions
	"github.com/rcastellanos/fareacl/internal/metrics"
	"github.com/rcastellanos/fareacl/internal/version"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.New()

func newTestServer() (*Server, *version.MemStore) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Ingest.MaxFileSize = 1 << 20
	cfg.Rate.Enabled = false

	store := version.NewMemStore()
	rec := version.NewReconciler(store, store, 0, log)
	runner := jobs.NewRunner(2, 100*time.Millisecond, 5*time.Second, time.Minute, log)

	return NewServer(cfg, rec, runner, testMetrics, log), store
}

func mustDef(t *testing.T, key string) list.Definition {
	t.Helper()
	def, ok := list.Get(key)
	if !ok {
		t.Fatalf("list %q not registered", key)
	}
	return def
}

const samCSV = "SERIAL_DEC,SERIAL_HEX,CONFIG,OPERATOR,LOCATION_ID,ESTACION\n" +
	"255,FF,CP,01,0001,CENTRAL\n" +
	"256,100,CL,01,0001,NORTE\n"

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func doRequest(s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func submitAndWait(t *testing.T, s *Server, path string, files map[string]string) jobs.Snapshot {
	t.Helper()
	body, contentType := multipartBody(t, files)
	w := doRequest(s, http.MethodPost, path, body, contentType)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("submit response has no job id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.runner.Wait(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("wait for job: %v", err)
	}
	return snap
}

func TestSubmitCreatesVersion(t *testing.T) {
	s, _ := newTestServer()

	snap := submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": samCSV,
	})
	if snap.Status != jobs.StatusSucceeded {
		t.Fatalf("job status = %q (error %q), want succeeded", snap.Status, snap.Error)
	}

	w := doRequest(s, http.MethodGet, "/api/lists/whitelist/current", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("current status = %d", w.Code)
	}
	var sum version.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.CurrentVersion != 1 {
		t.Errorf("current version = %d, want 1", sum.CurrentVersion)
	}
	if sum.ActiveRecords != 2 {
		t.Errorf("active records = %d, want 2", sum.ActiveRecords)
	}
}

func TestSubmitUnknownList(t *testing.T) {
	s, _ := newTestServer()
	body, contentType := multipartBody(t, map[string]string{"x.csv": samCSV})

	w := doRequest(s, http.MethodPost, "/api/lists/nope/versions", body, contentType)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSubmitInvalidRowRejected(t *testing.T) {
	s, _ := newTestServer()

	bad := "SERIAL_DEC,SERIAL_HEX,CONFIG,OPERATOR,LOCATION_ID,ESTACION\n" +
		"255,AA,CP,01,0001,CENTRAL\n" // serial mismatch
	body, contentType := multipartBody(t, map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": bad,
	})

	w := doRequest(s, http.MethodPost, "/api/lists/whitelist/versions", body, contentType)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp validateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid {
		t.Error("response marked valid")
	}
	if len(resp.Reports) != 1 || len(resp.Reports[0].Errors) == 0 {
		t.Errorf("reports = %+v, want one report with row errors", resp.Reports)
	}
}

func TestSubmitAllFilesUnrecognized(t *testing.T) {
	s, _ := newTestServer()
	body, contentType := multipartBody(t, map[string]string{"random.csv": samCSV})

	w := doRequest(s, http.MethodPost, "/api/lists/whitelist/versions", body, contentType)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 (nothing to reconcile)", w.Code)
	}
}

func TestValidateDryRun(t *testing.T) {
	s, store := newTestServer()

	body, contentType := multipartBody(t, map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": samCSV,
	})
	w := doRequest(s, http.MethodPost, "/api/lists/whitelist/versions/validate", body, contentType)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp validateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid || resp.Result == nil || !resp.Result.DryRun {
		t.Errorf("response = %+v, want a valid dry-run result", resp)
	}
	if len(resp.Result.AddedValid) != 2 {
		t.Errorf("added valid = %d, want 2", len(resp.Result.AddedValid))
	}

	// Nothing may have been written.
	if v, _ := store.MaxVersion(context.Background(), mustDef(t, "whitelist")); v != 0 {
		t.Errorf("version after dry run = %d, want 0", v)
	}
}

func TestRecordLookupAndCompare(t *testing.T) {
	s, _ := newTestServer()

	snap := submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": samCSV,
	})
	if snap.Status != jobs.StatusSucceeded {
		t.Fatalf("seed job failed: %s", snap.Error)
	}

	// Remove one of the two records to get a second version.
	removal := "SERIAL_DEC,SERIAL_HEX,CONFIG,OPERATOR,LOCATION_ID,ESTACION\n" +
		"256,100,CL,01,0001,NORTE\n"
	snap = submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{
		"listablanca_sams_bajas_01_202401161230.csv": removal,
	})
	if snap.Status != jobs.StatusSucceeded {
		t.Fatalf("removal job failed: %s", snap.Error)
	}

	w := doRequest(s, http.MethodGet, "/api/lists/whitelist/records/FF", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", w.Code)
	}
	var row version.Row
	if err := json.Unmarshal(w.Body.Bytes(), &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.Record.Key != "FF" || row.Version != 2 {
		t.Errorf("lookup = key %s version %d, want FF at version 2", row.Record.Key, row.Version)
	}

	w = doRequest(s, http.MethodGet, "/api/lists/whitelist/records/100", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("removed record lookup status = %d, want 404", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/lists/whitelist/compare?from=1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("compare status = %d", w.Code)
	}
	var cmp version.CompareResult
	if err := json.Unmarshal(w.Body.Bytes(), &cmp); err != nil {
		t.Fatalf("decode compare: %v", err)
	}
	if len(cmp.Removed) != 1 || cmp.Removed[0].Key != "100" {
		t.Errorf("compare removed = %+v, want key 100", cmp.Removed)
	}
}

func TestRollbackEndpoint(t *testing.T) {
	s, _ := newTestServer()

	for _, name := range []string{
		"listablanca_sams_altas_01_202401151230.csv",
		"listablanca_sams_cambios_01_202401161230.csv",
	} {
		content := samCSV
		if strings.Contains(name, "cambios") {
			content = "SERIAL_DEC,SERIAL_HEX,CONFIG,OPERATOR,LOCATION_ID,ESTACION\n" +
				"255,FF,CPP,01,0001,CENTRAL\n"
		}
		snap := submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{name: content})
		if snap.Status != jobs.StatusSucceeded {
			t.Fatalf("seed job failed: %s", snap.Error)
		}
	}

	body := strings.NewReader(`{"targetVersion": 1, "userId": "ops"}`)
	w := doRequest(s, http.MethodPost, "/api/lists/whitelist/rollback", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("rollback status = %d, body %s", w.Code, w.Body.String())
	}
	var res version.RollbackResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode rollback result: %v", err)
	}
	if !res.Success || res.TargetVersion != 1 {
		t.Errorf("rollback result = %+v, want success at version 1", res)
	}

	w = doRequest(s, http.MethodGet, "/api/lists/whitelist/current", nil, "")
	var sum version.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.CurrentVersion != 1 {
		t.Errorf("version after rollback = %d, want 1", sum.CurrentVersion)
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	s, _ := newTestServer()

	body := strings.NewReader(`{"targetVersion": 9, "userId": "ops"}`)
	w := doRequest(s, http.MethodPost, "/api/lists/whitelist/rollback", body, "application/json")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	s, _ := newTestServer()

	snap := submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": samCSV,
	})
	if snap.Status != jobs.StatusSucceeded {
		t.Fatalf("seed job failed: %s", snap.Error)
	}

	w := doRequest(s, http.MethodGet, "/api/lists/whitelist/history", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var entries []version.HistoryEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 1 || entries[0].OperationType != version.OpCreation {
		t.Fatalf("history = %+v, want one CREATION entry", entries)
	}

	w = doRequest(s, http.MethodGet, "/api/history/"+entries[0].ID, nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("history entry status = %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/lists/whitelist/history/latest", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("latest history status = %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/history/unknown-id", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown history entry status = %d, want 404", w.Code)
	}
}

func TestJobStatusEndpoint(t *testing.T) {
	s, _ := newTestServer()

	snap := submitAndWait(t, s, "/api/lists/whitelist/versions", map[string]string{
		"listablanca_sams_altas_01_202401151230.csv": samCSV,
	})

	w := doRequest(s, http.MethodGet, "/api/jobs/"+snap.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("job status = %d", w.Code)
	}
	var got jobs.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got.Status != jobs.StatusSucceeded {
		t.Errorf("job status = %q, want succeeded", got.Status)
	}

	w = doRequest(s, http.MethodGet, "/api/jobs/unknown", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer()
	w := doRequest(s, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}
