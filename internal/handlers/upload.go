package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dphs-ocr/apiserver/internal/apperr"
	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UploadHandler provides HTTP handlers for upload ingestion and retrieval.
type UploadHandler struct {
	uploadService *services.UploadService
	baseURL       string
}

// NewUploadHandler constructs a handler. baseURL may be empty, in which
// case download links are built from the request's Host header.
func NewUploadHandler(uploadService *services.UploadService, baseURL string) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

// UploadRouter registers upload routes on the given router.
func UploadRouter(r chi.Router, uploadService *services.UploadService, baseURL string) {
	handler := NewUploadHandler(uploadService, baseURL)

	r.Post("/upload", handler.CreateUpload)
	r.Get("/uploads", handler.ListUploads)
	r.Get("/upload/{uploadID}", handler.GetUpload)
	r.Delete("/upload/{uploadID}", handler.DeleteUpload)
}

// CreateUpload ingests one upload bundle.
func (h *UploadHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	upload, err := h.uploadService.Create(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	base := h.requestBaseURL(r)
	writeSuccess(w, http.StatusCreated, newCreateUploadView(upload, base), "Upload successful")
}

// ListUploads returns uploads matching the query filters, newest first.
func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	filter, err := parseUploadFilter(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	uploads, err := h.uploadService.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}

	base := h.requestBaseURL(r)
	items := make([]uploadView, 0, len(uploads))
	for _, upload := range uploads {
		items = append(items, newUploadView(upload, base, false))
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"uploads": items,
		"count":   len(items),
	}, "Uploads retrieved successfully")
}

// GetUpload returns one upload with its tests, including raw OCR text.
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")

	upload, err := h.uploadService.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, newUploadView(upload, h.requestBaseURL(r), true),
		"Upload retrieved successfully")
}

// DeleteUpload removes an upload, its test records, and its stored files.
func (h *UploadHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")

	if err := h.uploadService.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deletedId": id}, "Upload deleted successfully")
}

func (h *UploadHandler) requestBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func parseUploadFilter(r *http.Request) (types.UploadFilter, error) {
	query := r.URL.Query()
	filter := types.UploadFilter{
		UserID:    query.Get("userId"),
		PanelID:   query.Get("panelId"),
		MonthName: query.Get("month"),
	}

	for _, bound := range []struct {
		name   string
		target **int64
	}{
		{"startDate", &filter.StartDate},
		{"endDate", &filter.EndDate},
	} {
		raw := query.Get(bound.name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.UploadFilter{}, invalidQueryParam(bound.name)
		}
		*bound.target = &value
	}
	return filter, nil
}

func invalidQueryParam(name string) error {
	return apperr.Validationf(name, "%s must be a unix timestamp in milliseconds", name)
}

// locationView is a nullable coordinate pair in responses.
type locationView struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// testView is the per-test shape shared by ingestion and retrieval
// responses. RawText is only populated on the detail view.
type testView struct {
	ID            string         `json:"id"`
	Type          types.TestType `json:"type"`
	DisplayName   string         `json:"displayName"`
	Value         *float64       `json:"value"`
	Unit          string         `json:"unit"`
	RawText       *string        `json:"rawText,omitempty"`
	TestTime      string         `json:"testTime"`
	TestTimestamp int64          `json:"testTimestamp"`
	Confidence    *float64       `json:"confidence"`
	ImageURL      string         `json:"imageUrl"`
	TestLocation  locationView   `json:"testLocation"`
}

// createUploadView is the body of a successful ingestion response.
type createUploadView struct {
	UploadID       string       `json:"uploadId"`
	PanelID        string       `json:"panelId"`
	UserID         string       `json:"userId"`
	UserName       string       `json:"userName"`
	PHCName        string       `json:"phcName"`
	HubName        string       `json:"hubName"`
	BlockName      string       `json:"blockName"`
	DistrictName   string       `json:"districtName"`
	UploadTime     string       `json:"uploadTime"`
	UploadLocation locationView `json:"uploadLocation"`
	PDFURL         string       `json:"pdfUrl"`
	TestsCount     int          `json:"testsCount"`
	Tests          []testView   `json:"tests"`
}

// uploadView is the body of list and detail responses.
type uploadView struct {
	ID              string       `json:"id"`
	PanelID         string       `json:"panelId"`
	UserID          string       `json:"userId"`
	UserName        string       `json:"userName"`
	PHCName         string       `json:"phcName"`
	HubName         string       `json:"hubName"`
	BlockName       string       `json:"blockName"`
	DistrictName    string       `json:"districtName"`
	UploadTime      string       `json:"uploadTime"`
	UploadTimestamp int64        `json:"uploadTimestamp"`
	Month           string       `json:"month"`
	UploadLocation  locationView `json:"uploadLocation"`
	PDFURL          string       `json:"pdfUrl"`
	TestsCount      int          `json:"testsCount"`
	Tests           []testView   `json:"tests"`
}

func newTestView(record types.TestRecord, base string, includeRaw bool) testView {
	view := testView{
		ID:            record.ID,
		Type:          record.TestType,
		DisplayName:   record.TestDisplayName,
		Value:         record.ResultValue,
		Unit:          record.Unit,
		TestTime:      record.ValidationDateTime,
		TestTimestamp: record.ValidationTimestamp,
		Confidence:    record.Confidence,
		ImageURL:      base + record.ImageURL,
		TestLocation:  locationView{Latitude: record.Latitude, Longitude: record.Longitude},
	}
	if includeRaw {
		raw := record.RawOCRText
		view.RawText = &raw
	}
	return view
}

func newCreateUploadView(upload types.Upload, base string) createUploadView {
	tests := make([]testView, 0, len(upload.TestRecords))
	for _, record := range upload.TestRecords {
		tests = append(tests, newTestView(record, base, false))
	}
	return createUploadView{
		UploadID:       upload.ID,
		PanelID:        upload.PanelID,
		UserID:         upload.UserID,
		UserName:       upload.UserName,
		PHCName:        upload.PHCName,
		HubName:        upload.HubName,
		BlockName:      upload.BlockName,
		DistrictName:   upload.DistrictName,
		UploadTime:     upload.UploadDateTime,
		UploadLocation: locationView{Latitude: upload.Latitude, Longitude: upload.Longitude},
		PDFURL:         base + upload.PDFURL,
		TestsCount:     len(tests),
		Tests:          tests,
	}
}

func newUploadView(upload types.Upload, base string, includeRaw bool) uploadView {
	tests := make([]testView, 0, len(upload.TestRecords))
	for _, record := range upload.TestRecords {
		tests = append(tests, newTestView(record, base, includeRaw))
	}
	return uploadView{
		ID:              upload.ID,
		PanelID:         upload.PanelID,
		UserID:          upload.UserID,
		UserName:        upload.UserName,
		PHCName:         upload.PHCName,
		HubName:         upload.HubName,
		BlockName:       upload.BlockName,
		DistrictName:    upload.DistrictName,
		UploadTime:      upload.UploadDateTime,
		UploadTimestamp: upload.UploadTimestamp,
		Month:           upload.MonthName,
		UploadLocation:  locationView{Latitude: upload.Latitude, Longitude: upload.Longitude},
		PDFURL:          base + upload.PDFURL,
		TestsCount:      len(tests),
		Tests:           tests,
	}
}
