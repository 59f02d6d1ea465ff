package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// DownloadHandler streams stored report files back to clients.
type DownloadHandler struct {
	uploadService *services.UploadService
}

func NewDownloadHandler(uploadService *services.UploadService) *DownloadHandler {
	return &DownloadHandler{uploadService: uploadService}
}

// DownloadRouter registers file download routes on the given router.
func DownloadRouter(r chi.Router, uploadService *services.UploadService) {
	handler := NewDownloadHandler(uploadService)

	r.Get("/download/pdf/{uploadID}", handler.DownloadPDF)
	r.Get("/download/image/{uploadID}/{testName}", handler.DownloadImage)
}

// DownloadPDF streams the combined report PDF as an attachment.
func (h *DownloadHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")

	upload, body, err := h.uploadService.OpenPDF(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", upload.PDFFileName))
	_, _ = io.Copy(w, body)
}

// DownloadImage streams one test's captured image inline.
func (h *DownloadHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")
	testName := chi.URLParam(r, "testName")

	record, body, contentType, err := h.uploadService.OpenImage(r.Context(), id, testName)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", record.ImageFileName))
	_, _ = io.Copy(w, body)
}
