package types

import "time"

// DefaultUnit is the result unit assumed when a test payload omits one.
const DefaultUnit = "mg/dL"

// TestType identifies one of the supported assay types.
type TestType string

// Supported test types.
const (
	TestTypeGlucose     TestType = "GLUCOSE"
	TestTypeCreatinine  TestType = "CREATININE"
	TestTypeCholesterol TestType = "CHOLESTEROL"
)

// TestTypes lists every supported test type.
var TestTypes = []TestType{TestTypeGlucose, TestTypeCreatinine, TestTypeCholesterol}

// Valid reports whether t is a supported test type.
func (t TestType) Valid() bool {
	switch t {
	case TestTypeGlucose, TestTypeCreatinine, TestTypeCholesterol:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable name shown for the test type.
func (t TestType) DisplayName() string {
	switch t {
	case TestTypeGlucose:
		return "Glucose"
	case TestTypeCreatinine:
		return "Creatinine"
	case TestTypeCholesterol:
		return "Cholesterol"
	default:
		return string(t)
	}
}

// TestRecord represents one OCR-derived test result belonging to an Upload.
// Records are created together with their siblings during ingestion and are
// never updated afterwards; they are removed only by cascade when the owning
// Upload is deleted.
type TestRecord struct {
	// ID is the caller-supplied unique identifier of the record.
	ID string `json:"id" db:"id"`

	// UploadID identifies the owning Upload.
	UploadID string `json:"uploadId" db:"upload_id"`

	// TestName is the synthetic per-upload identifier (test-1, test-2, test-3).
	TestName string `json:"testName" db:"test_name"`

	// TestNumber is the 1-based position of the test within its upload.
	TestNumber int `json:"testNumber" db:"test_number"`

	// TestType is the assay type for this record.
	TestType TestType `json:"testType" db:"test_type"`

	// TestDisplayName is the human-readable test name.
	TestDisplayName string `json:"testDisplayName" db:"test_display_name"`

	// ResultValue is the numeric result. Nil signals an unreadable or
	// invalid OCR result.
	ResultValue *float64 `json:"resultValue" db:"result_value"`

	// Unit is the result unit, defaulting to mg/dL.
	Unit string `json:"unit" db:"unit"`

	// RawOCRText is the raw text recognized by the OCR engine.
	RawOCRText string `json:"rawOcrText" db:"raw_ocr_text"`

	// Confidence is the OCR engine's self-reported certainty in [0,1],
	// when the engine supplied one.
	Confidence *float64 `json:"confidence" db:"confidence"`

	// ValidationTimestamp is the epoch-milliseconds instant the result was
	// validated on the device.
	ValidationTimestamp int64 `json:"validationTimestamp" db:"validation_timestamp"`

	// ValidationDateTime is the human rendering of ValidationTimestamp.
	ValidationDateTime string `json:"validationDateTime" db:"validation_datetime"`

	// ImageFileName is the descriptive name used for downloads.
	ImageFileName string `json:"imageFileName" db:"image_file_name"`

	// ImageURL is the server-relative download path for the test image.
	ImageURL string `json:"imageUrl" db:"image_url"`

	// IsValidResult marks whether the result passed on-device validation.
	IsValidResult bool `json:"isValidResult" db:"is_valid_result"`

	// Latitude and Longitude are the GPS coordinates where the test was
	// taken, when the device reported them.
	Latitude  *float64 `json:"latitude" db:"latitude"`
	Longitude *float64 `json:"longitude" db:"longitude"`

	// CreatedAt is the timestamp the row was inserted.
	CreatedAt time.Time `json:"-" db:"created_at"`

	// UpdatedAt is the timestamp the row was last written.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}
