package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dphs-ocr/apiserver/internal/apperr"
	"github.com/dphs-ocr/apiserver/internal/mq"
	"github.com/dphs-ocr/apiserver/internal/storage"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/dphs-ocr/apiserver/types"
)

// panelIDPattern is the fixed panel naming scheme scanned from QR codes.
var panelIDPattern = regexp.MustCompile(`^DPHS-\d+$`)

const (
	// dateTimeLayout renders epoch-millis timestamps for humans,
	// e.g. "2 Jan 2026, 3:04 pm".
	dateTimeLayout = "2 Jan 2006, 3:04 pm"
	// monthLayout renders the month label used to partition stored files,
	// e.g. "January 2026".
	monthLayout = "January 2006"

	contentTypePDF  = "application/pdf"
	contentTypeJPEG = "image/jpeg"
	contentTypePNG  = "image/png"
)

// requiredUploadFields are the organizational fields every upload must carry.
var requiredUploadFields = []string{"userId", "userName", "phcName", "hubName", "blockName", "districtName"}

// UploadRepository defines persistence operations for uploads.
type UploadRepository interface {
	Create(ctx context.Context, upload types.Upload) error
	GetByID(ctx context.Context, id string) (types.Upload, error)
	List(ctx context.Context, filter types.UploadFilter) ([]types.Upload, error)
	GetTestRecord(ctx context.Context, uploadID, testName string) (types.TestRecord, error)
	Delete(ctx context.Context, id string) error
}

// UploadService encapsulates upload ingestion, retrieval, deletion, and
// file downloads.
type UploadService struct {
	repo        UploadRepository
	files       *storage.Storage
	events      mq.Publisher
	maxFileSize int64
}

// NewUploadService constructs an UploadService. events may be nil, which
// disables event publishing.
func NewUploadService(repo UploadRepository, files *storage.Storage, events mq.Publisher, maxFileSize int64) *UploadService {
	return &UploadService{
		repo:        repo,
		files:       files,
		events:      events,
		maxFileSize: maxFileSize,
	}
}

// stagedFile is a decoded upload file awaiting publication.
type stagedFile struct {
	name        string
	data        []byte
	contentType string
}

// Create validates and ingests one upload bundle. Files are staged before
// the rows commit and moved to their final location afterwards, so a
// rejected or failed ingestion never leaves published files behind.
func (s *UploadService) Create(ctx context.Context, req types.CreateUploadRequest) (types.Upload, error) {
	files, err := s.validateCreate(req)
	if err != nil {
		return types.Upload{}, err
	}

	meta := req.Upload
	uploadedAt := time.UnixMilli(meta.Timestamp)
	monthName := uploadedAt.Format(monthLayout)

	upload := types.Upload{
		ID:              meta.ID,
		UploadTimestamp: meta.Timestamp,
		UploadDateTime:  uploadedAt.Format(dateTimeLayout),
		MonthName:       monthName,
		PanelID:         meta.PanelID,
		UserID:          strings.TrimSpace(meta.UserID),
		UserName:        strings.TrimSpace(meta.UserName),
		PHCName:         strings.TrimSpace(meta.PHCName),
		HubName:         strings.TrimSpace(meta.HubName),
		BlockName:       strings.TrimSpace(meta.BlockName),
		DistrictName:    strings.TrimSpace(meta.DistrictName),
		Latitude:        meta.Latitude,
		Longitude:       meta.Longitude,
		PDFFileName:     fmt.Sprintf("combined_report_%d.pdf", meta.Timestamp),
		PDFURL:          "/api/download/pdf/" + meta.ID,
	}

	for i, test := range req.Tests {
		number := i + 1
		testName := fmt.Sprintf("test-%d", number)
		testType := types.TestType(test.Type)
		validatedAt := time.UnixMilli(test.Timestamp)
		ext := imageExtension(test.ImageType)

		unit := strings.TrimSpace(test.Unit)
		if unit == "" {
			unit = types.DefaultUnit
		}

		upload.TestRecords = append(upload.TestRecords, types.TestRecord{
			ID:                  test.ID,
			UploadID:            meta.ID,
			TestName:            testName,
			TestNumber:          number,
			TestType:            testType,
			TestDisplayName:     testType.DisplayName(),
			ResultValue:         test.Value,
			Unit:                unit,
			RawOCRText:          test.RawText,
			Confidence:          test.Confidence,
			ValidationTimestamp: test.Timestamp,
			ValidationDateTime:  validatedAt.Format(dateTimeLayout),
			ImageFileName:       fmt.Sprintf("%s_%d.%s", strings.ToLower(test.Type), test.Timestamp, ext),
			ImageURL:            "/api/download/image/" + meta.ID + "/" + testName,
			IsValidResult:       true,
			Latitude:            test.Latitude,
			Longitude:           test.Longitude,
		})
	}

	stagingPrefix := path.Join(storage.StagingPrefix, upload.ID)
	if err := s.stageFiles(ctx, upload.ID, files); err != nil {
		_ = s.files.DeletePrefix(ctx, stagingPrefix)
		return types.Upload{}, uploadFailure(err)
	}

	if err := s.repo.Create(ctx, upload); err != nil {
		_ = s.files.DeletePrefix(ctx, stagingPrefix)
		if errors.Is(err, store.ErrDuplicateTest) {
			return types.Upload{}, apperr.Validation("tests", "A test record with this id already exists")
		}
		if errors.Is(err, store.ErrDuplicate) {
			return types.Upload{}, apperr.Validation("upload.id", "An upload with this id already exists")
		}
		return types.Upload{}, uploadFailure(err)
	}

	finalPrefix := storage.UploadPrefix(upload.PanelID, upload.MonthName, upload.ID)
	if err := s.publishFiles(ctx, upload.ID, finalPrefix, files); err != nil {
		// Compensate: the rows must not outlive their files.
		if delErr := s.repo.Delete(ctx, upload.ID); delErr != nil {
			log.Printf("upload %s: failed to roll back rows after file publish error: %v", upload.ID, delErr)
		}
		_ = s.files.DeletePrefix(ctx, stagingPrefix)
		_ = s.files.DeletePrefix(ctx, finalPrefix)
		return types.Upload{}, uploadFailure(err)
	}
	_ = s.files.DeletePrefix(ctx, stagingPrefix)

	log.Printf("upload created: %s | panel: %s | user: %s | tests: %d",
		upload.ID, upload.PanelID, upload.UserID, len(upload.TestRecords))

	s.publishEvent(ctx, mq.TopicUploadCreated, upload)

	return upload, nil
}

// GetByID returns one upload with its tests, or a not-found error.
func (s *UploadService) GetByID(ctx context.Context, id string) (types.Upload, error) {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Upload{}, apperr.NotFound("Upload not found")
		}
		return types.Upload{}, apperr.Internal("Failed to fetch upload", err)
	}
	return upload, nil
}

// List returns uploads matching the filter, newest first.
func (s *UploadService) List(ctx context.Context, filter types.UploadFilter) ([]types.Upload, error) {
	uploads, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Failed to list uploads", err)
	}
	return uploads, nil
}

// Delete removes the upload, its test records (by cascade), and its files.
// The rows are authoritative: a failed file cleanup is logged, not surfaced.
func (s *UploadService) Delete(ctx context.Context, id string) error {
	upload, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Upload not found")
		}
		return apperr.Internal("Failed to delete upload", err)
	}

	prefix := storage.UploadPrefix(upload.PanelID, upload.MonthName, upload.ID)
	if err := s.files.DeletePrefix(ctx, prefix); err != nil {
		log.Printf("upload %s: failed to remove files under %s: %v", id, prefix, err)
	}

	s.publishEvent(ctx, mq.TopicUploadDeleted, upload)
	return nil
}

// OpenPDF resolves the upload and opens its combined report for streaming.
func (s *UploadService) OpenPDF(ctx context.Context, id string) (types.Upload, io.ReadCloser, error) {
	upload, err := s.GetByID(ctx, id)
	if err != nil {
		return types.Upload{}, nil, err
	}

	key := path.Join(storage.UploadPrefix(upload.PanelID, upload.MonthName, upload.ID), types.PDFFileName)
	reader, err := s.files.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return types.Upload{}, nil, apperr.NotFound("PDF file not found")
		}
		return types.Upload{}, nil, apperr.Internal("Failed to open PDF file", err)
	}
	return upload, reader, nil
}

// OpenImage resolves an upload's test record by its synthetic name and opens
// the stored image. The returned content type matches the stored extension.
func (s *UploadService) OpenImage(ctx context.Context, id, testName string) (types.TestRecord, io.ReadCloser, string, error) {
	upload, err := s.GetByID(ctx, id)
	if err != nil {
		return types.TestRecord{}, nil, "", err
	}

	record, err := s.repo.GetTestRecord(ctx, id, testName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TestRecord{}, nil, "", apperr.NotFound("Test record not found")
		}
		return types.TestRecord{}, nil, "", apperr.Internal("Failed to fetch test record", err)
	}

	prefix := storage.UploadPrefix(upload.PanelID, upload.MonthName, upload.ID)
	for _, candidate := range []struct {
		ext         string
		contentType string
	}{
		{"jpg", contentTypeJPEG},
		{"png", contentTypePNG},
	} {
		reader, err := s.files.Get(ctx, path.Join(prefix, testName+"."+candidate.ext))
		if err == nil {
			return record, reader, candidate.contentType, nil
		}
		if !errors.Is(err, storage.ErrNotExist) {
			return types.TestRecord{}, nil, "", apperr.Internal("Failed to open image file", err)
		}
	}
	return types.TestRecord{}, nil, "", apperr.NotFound("Image file not found")
}

// validateCreate runs the ingestion validation pipeline in order, decoding
// the base64 payloads as the final step. The first failure short-circuits.
func (s *UploadService) validateCreate(req types.CreateUploadRequest) ([]stagedFile, error) {
	if req.Upload == nil || req.Tests == nil || req.PDFBase64 == "" {
		return nil, apperr.Validation("body", "Missing required fields: upload, tests, or pdfBase64")
	}

	if len(req.Tests) == 0 || len(req.Tests) > 3 {
		return nil, apperr.Validation("tests", "Tests must be an array with 1-3 items")
	}

	if !panelIDPattern.MatchString(req.Upload.PanelID) {
		return nil, apperr.Validation("panelId",
			`panelId is required and must match pattern DPHS-{number} (e.g., "DPHS-1")`)
	}

	for _, field := range requiredUploadFields {
		if strings.TrimSpace(uploadField(req.Upload, field)) == "" {
			return nil, apperr.Validationf(field, "Missing or empty required field: %s", field)
		}
	}

	seen := make(map[string]bool, len(req.Tests))
	for _, test := range req.Tests {
		if seen[test.Type] {
			return nil, apperr.Validation("tests", "Each test type can only appear once")
		}
		seen[test.Type] = true
	}

	for _, test := range req.Tests {
		if !types.TestType(test.Type).Valid() {
			return nil, apperr.Validationf("tests",
				"Invalid test type: %s. Must be GLUCOSE, CREATININE, or CHOLESTEROL", test.Type)
		}
	}

	if strings.TrimSpace(req.Upload.ID) == "" {
		return nil, apperr.Validation("upload.id", "Missing or empty required field: id")
	}
	if req.Upload.Timestamp <= 0 {
		return nil, apperr.Validation("upload.timestamp", "timestamp must be a positive epoch-milliseconds value")
	}

	for i, test := range req.Tests {
		if test.Confidence != nil && (*test.Confidence < 0 || *test.Confidence > 1) {
			return nil, apperr.Validationf(fmt.Sprintf("tests[%d].confidence", i),
				"confidence must be between 0 and 1")
		}
		if test.Timestamp <= 0 {
			return nil, apperr.Validationf(fmt.Sprintf("tests[%d].timestamp", i),
				"timestamp must be a positive epoch-milliseconds value")
		}
	}

	pdfData, err := decodeBase64(req.PDFBase64)
	if err != nil {
		return nil, apperr.Validation("pdfBase64", "pdfBase64 is not valid base64 data")
	}
	if int64(len(pdfData)) > s.maxFileSize {
		return nil, apperr.Validationf("pdfBase64", "decoded PDF exceeds the maximum file size of %d bytes", s.maxFileSize)
	}

	files := make([]stagedFile, 0, len(req.Tests)+1)
	files = append(files, stagedFile{name: types.PDFFileName, data: pdfData, contentType: contentTypePDF})

	for i, test := range req.Tests {
		imageData, err := decodeBase64(test.ImageBase64)
		if err != nil {
			return nil, apperr.Validationf(fmt.Sprintf("tests[%d].imageBase64", i),
				"imageBase64 is not valid base64 data")
		}
		if int64(len(imageData)) > s.maxFileSize {
			return nil, apperr.Validationf(fmt.Sprintf("tests[%d].imageBase64", i),
				"decoded image exceeds the maximum file size of %d bytes", s.maxFileSize)
		}
		ext := imageExtension(test.ImageType)
		contentType := contentTypeJPEG
		if ext == "png" {
			contentType = contentTypePNG
		}
		files = append(files, stagedFile{
			name:        fmt.Sprintf("test-%d.%s", i+1, ext),
			data:        imageData,
			contentType: contentType,
		})
	}

	return files, nil
}

func (s *UploadService) stageFiles(ctx context.Context, uploadID string, files []stagedFile) error {
	for _, file := range files {
		key := storage.StagingKey(uploadID, file.name)
		if err := s.files.Put(ctx, key, bytes.NewReader(file.data), int64(len(file.data)), file.contentType); err != nil {
			return fmt.Errorf("stage %s: %w", file.name, err)
		}
	}
	return nil
}

func (s *UploadService) publishFiles(ctx context.Context, uploadID, finalPrefix string, files []stagedFile) error {
	for _, file := range files {
		src := storage.StagingKey(uploadID, file.name)
		dst := path.Join(finalPrefix, file.name)
		if err := s.files.Move(ctx, src, dst); err != nil {
			return fmt.Errorf("publish %s: %w", file.name, err)
		}
	}
	return nil
}

// uploadFailure wraps a post-validation ingestion error, surfacing the
// underlying cause in the response message.
func uploadFailure(err error) error {
	return apperr.Internal(fmt.Sprintf("Upload failed: %s", err), err)
}

// uploadEvent is the JSON payload published to the event broker.
type uploadEvent struct {
	UploadID  string `json:"uploadId"`
	PanelID   string `json:"panelId"`
	UserID    string `json:"userId"`
	MonthName string `json:"monthName"`
	TestCount int    `json:"testCount"`
	Timestamp int64  `json:"timestamp"`
}

func (s *UploadService) publishEvent(ctx context.Context, topic string, upload types.Upload) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(uploadEvent{
		UploadID:  upload.ID,
		PanelID:   upload.PanelID,
		UserID:    upload.UserID,
		MonthName: upload.MonthName,
		TestCount: len(upload.TestRecords),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if _, err := s.events.Publish(ctx, topic, payload, map[string]string{"panelId": upload.PanelID}); err != nil {
		log.Printf("upload %s: failed to publish %s event: %v", upload.ID, topic, err)
	}
}

func uploadField(meta *types.UploadMeta, field string) string {
	switch field {
	case "userId":
		return meta.UserID
	case "userName":
		return meta.UserName
	case "phcName":
		return meta.PHCName
	case "hubName":
		return meta.HubName
	case "blockName":
		return meta.BlockName
	case "districtName":
		return meta.DistrictName
	default:
		return ""
	}
}

func imageExtension(imageType string) string {
	if strings.EqualFold(strings.TrimSpace(imageType), "png") {
		return "png"
	}
	return "jpg"
}

func decodeBase64(encoded string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)
	return base64.StdEncoding.DecodeString(compact)
}
