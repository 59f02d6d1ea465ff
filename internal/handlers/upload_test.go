package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/internal/storage"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/dphs-ocr/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type memUploadRepo struct {
	uploads map[string]types.Upload
}

func newMemUploadRepo() *memUploadRepo {
	return &memUploadRepo{uploads: make(map[string]types.Upload)}
}

func (r *memUploadRepo) Create(ctx context.Context, upload types.Upload) error {
	if _, ok := r.uploads[upload.ID]; ok {
		return store.ErrDuplicate
	}
	r.uploads[upload.ID] = upload
	return nil
}

func (r *memUploadRepo) GetByID(ctx context.Context, id string) (types.Upload, error) {
	upload, ok := r.uploads[id]
	if !ok {
		return types.Upload{}, store.ErrNotFound
	}
	return upload, nil
}

func (r *memUploadRepo) List(ctx context.Context, filter types.UploadFilter) ([]types.Upload, error) {
	out := []types.Upload{}
	for _, upload := range r.uploads {
		if filter.PanelID != "" && upload.PanelID != filter.PanelID {
			continue
		}
		out = append(out, upload)
	}
	return out, nil
}

func (r *memUploadRepo) GetTestRecord(ctx context.Context, uploadID, testName string) (types.TestRecord, error) {
	upload, ok := r.uploads[uploadID]
	if !ok {
		return types.TestRecord{}, store.ErrNotFound
	}
	for _, record := range upload.TestRecords {
		if record.TestName == testName {
			return record, nil
		}
	}
	return types.TestRecord{}, store.ErrNotFound
}

func (r *memUploadRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.uploads[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.uploads, id)
	return nil
}

func newUploadRouter(t *testing.T) chi.Router {
	t.Helper()
	backend, err := storage.NewLocalClient(t.TempDir())
	if err != nil {
		t.Fatalf("new local client: %v", err)
	}
	svc := services.NewUploadService(newMemUploadRepo(), storage.NewStorage(backend), nil, 1<<20)

	router := chi.NewRouter()
	UploadRouter(router, svc, "")
	DownloadRouter(router, svc)
	return router
}

func uploadBody(id string) map[string]any {
	ts := time.Date(2026, time.March, 5, 14, 30, 0, 0, time.Local).UnixMilli()
	return map[string]any{
		"upload": map[string]any{
			"id":           id,
			"timestamp":    ts,
			"panelId":      "DPHS-7",
			"userId":       "user-001",
			"userName":     "Dr. Rajesh Kumar",
			"phcName":      "PHC Chennai North",
			"hubName":      "Zone 3 Hub",
			"blockName":    "Teynampet Block",
			"districtName": "Chennai",
		},
		"tests": []map[string]any{
			{
				"id":          id + "-t1",
				"type":        "GLUCOSE",
				"value":       110.5,
				"rawText":     "110.5 mg/dL",
				"confidence":  0.95,
				"timestamp":   ts,
				"imageBase64": base64.StdEncoding.EncodeToString([]byte("jpeg bytes")),
				"imageType":   "jpg",
			},
			{
				"id":          id + "-t2",
				"type":        "CHOLESTEROL",
				"value":       182.0,
				"rawText":     "182 mg/dL",
				"confidence":  0.88,
				"timestamp":   ts + 60000,
				"imageBase64": base64.StdEncoding.EncodeToString([]byte("jpeg bytes 2")),
				"imageType":   "jpg",
			},
		},
		"pdfBase64": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 combined")),
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createUpload(t *testing.T, router chi.Router, id string) Envelope {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/upload", uploadBody(id))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rec.Code, rec.Body.String())
	}
	return decodeEnvelope(t, rec)
}

func TestCreateUploadEndpoint(t *testing.T) {
	router := newUploadRouter(t)

	env := createUpload(t, router, "upload-abc")
	if !env.Success || env.Message != "Upload successful" {
		t.Fatalf("envelope = %+v", env)
	}

	data := env.Data.(map[string]any)
	if data["uploadId"] != "upload-abc" {
		t.Errorf("uploadId = %v", data["uploadId"])
	}
	if data["testsCount"] != float64(2) {
		t.Errorf("testsCount = %v", data["testsCount"])
	}
	pdfURL, _ := data["pdfUrl"].(string)
	if !strings.HasPrefix(pdfURL, "http://") || !strings.HasSuffix(pdfURL, "/api/download/pdf/upload-abc") {
		t.Errorf("pdfUrl = %q", pdfURL)
	}

	tests := data["tests"].([]any)
	if len(tests) != 2 {
		t.Fatalf("tests = %v", tests)
	}
	first := tests[0].(map[string]any)
	if first["type"] != "GLUCOSE" || first["displayName"] != "Glucose" {
		t.Errorf("first test = %v", first)
	}
	if _, present := first["rawText"]; present {
		t.Error("rawText leaked into create response")
	}
}

func TestCreateUploadEndpointBadJSON(t *testing.T) {
	router := newUploadRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Invalid request body" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestCreateUploadEndpointValidationError(t *testing.T) {
	router := newUploadRouter(t)

	body := uploadBody("upload-bad")
	body["upload"].(map[string]any)["panelId"] = "PANEL-1"
	rec := doJSON(t, router, http.MethodPost, "/upload", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("success = true on validation failure")
	}
	if len(env.Errors) == 0 {
		t.Error("errors array missing")
	}
}

func TestListUploadsEndpoint(t *testing.T) {
	router := newUploadRouter(t)
	createUpload(t, router, "upload-1")

	rec := doJSON(t, router, http.MethodGet, "/uploads", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if data["count"] != float64(1) {
		t.Errorf("count = %v", data["count"])
	}
	if strings.Contains(rec.Body.String(), "rawText") {
		t.Error("rawText leaked into list response")
	}
	uploads := data["uploads"].([]any)
	item := uploads[0].(map[string]any)
	if item["month"] != "March 2026" {
		t.Errorf("month = %v", item["month"])
	}
	tests := item["tests"].([]any)
	if _, hasTS := tests[0].(map[string]any)["testTimestamp"]; !hasTS {
		t.Error("testTimestamp missing from list view")
	}
}

func TestListUploadsEndpointBadDateFilter(t *testing.T) {
	router := newUploadRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/uploads?startDate=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetUploadEndpoint(t *testing.T) {
	router := newUploadRouter(t)
	createUpload(t, router, "upload-detail")

	rec := doJSON(t, router, http.MethodGet, "/upload/upload-detail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if data["id"] != "upload-detail" {
		t.Errorf("id = %v", data["id"])
	}
	tests := data["tests"].([]any)
	if tests[0].(map[string]any)["rawText"] != "110.5 mg/dL" {
		t.Errorf("rawText = %v", tests[0].(map[string]any)["rawText"])
	}
}

func TestGetUploadEndpointNotFound(t *testing.T) {
	router := newUploadRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/upload/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Upload not found" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestDeleteUploadEndpoint(t *testing.T) {
	router := newUploadRouter(t)
	createUpload(t, router, "upload-del")

	rec := doJSON(t, router, http.MethodDelete, "/upload/upload-del", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Message != "Upload deleted successfully" {
		t.Errorf("message = %q", env.Message)
	}

	rec = doJSON(t, router, http.MethodGet, "/upload/upload-del", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d", rec.Code)
	}
}

func TestDownloadEndpoints(t *testing.T) {
	router := newUploadRouter(t)
	createUpload(t, router, "upload-dl")

	rec := doJSON(t, router, http.MethodGet, "/download/pdf/upload-dl", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("pdf content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "combined_report_") {
		t.Errorf("pdf disposition = %q", cd)
	}
	if rec.Body.String() != "%PDF-1.4 combined" {
		t.Errorf("pdf body = %q", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/download/image/upload-dl/test-2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("image content type = %q", ct)
	}
	if rec.Body.String() != "jpeg bytes 2" {
		t.Errorf("image body = %q", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/download/image/upload-dl/test-9", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing image status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Test record not found" {
		t.Errorf("message = %q", env.Message)
	}
}
