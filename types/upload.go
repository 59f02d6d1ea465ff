package types

import "time"

// PDFFileName is the fixed on-disk name of the combined report inside an
// upload's directory.
const PDFFileName = "combined_report.pdf"

// Upload represents one ingestion event: a combined PDF report plus 1-3
// test images captured by the mobile app. The submitted user details are a
// denormalized snapshot taken at ingestion time, not a live reference, so
// historical uploads stay accurate if the user record changes later.
type Upload struct {
	// ID is the caller-supplied, globally unique upload identifier.
	// It is immutable once created.
	ID string `json:"id" db:"id"`

	// UploadTimestamp is the epoch-milliseconds instant the upload was
	// created on the device.
	UploadTimestamp int64 `json:"uploadTimestamp" db:"upload_timestamp"`

	// UploadDateTime is the human rendering of UploadTimestamp
	// (e.g., "2 Jan 2026, 3:04 pm").
	UploadDateTime string `json:"uploadDateTime" db:"upload_datetime"`

	// MonthName is the month label derived from UploadTimestamp
	// (e.g., "January 2026"), used to partition stored files.
	MonthName string `json:"monthName" db:"month_name"`

	// PanelID identifies the physical device/station the tests were run
	// on, scanned from its QR code (e.g., "DPHS-1").
	PanelID string `json:"panelId" db:"panel_id"`

	// UserID through DistrictName are the submitting user's details as
	// they were at ingestion time.
	UserID       string `json:"userId" db:"user_id"`
	UserName     string `json:"userName" db:"user_name"`
	PHCName      string `json:"phcName" db:"phc_name"`
	HubName      string `json:"hubName" db:"hub_name"`
	BlockName    string `json:"blockName" db:"block_name"`
	DistrictName string `json:"districtName" db:"district_name"`

	// Latitude and Longitude are the GPS coordinates where the upload was
	// created, when the device reported them.
	Latitude  *float64 `json:"latitude" db:"latitude"`
	Longitude *float64 `json:"longitude" db:"longitude"`

	// PDFFileName is the descriptive name used for PDF downloads.
	PDFFileName string `json:"pdfFileName" db:"pdf_file_name"`

	// PDFURL is the server-relative download path for the report.
	PDFURL string `json:"pdfUrl" db:"pdf_url"`

	// CreatedAt is the timestamp the row was inserted.
	CreatedAt time.Time `json:"-" db:"created_at"`

	// UpdatedAt is the timestamp the row was last written.
	UpdatedAt time.Time `json:"-" db:"updated_at"`

	// TestRecords holds the upload's test results when loaded.
	TestRecords []TestRecord `json:"testRecords,omitempty"`
}

// CreateUploadRequest is the JSON body accepted by POST /api/upload.
// Upload is a pointer so a missing top-level field is distinguishable from
// an empty one.
type CreateUploadRequest struct {
	Upload    *UploadMeta   `json:"upload"`
	Tests     []TestPayload `json:"tests"`
	PDFBase64 string        `json:"pdfBase64"`
}

// UploadMeta carries the upload-level metadata of an ingestion request.
type UploadMeta struct {
	ID           string   `json:"id"`
	Timestamp    int64    `json:"timestamp"`
	PanelID      string   `json:"panelId"`
	UserID       string   `json:"userId"`
	UserName     string   `json:"userName"`
	PHCName      string   `json:"phcName"`
	HubName      string   `json:"hubName"`
	BlockName    string   `json:"blockName"`
	DistrictName string   `json:"districtName"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// TestPayload carries one test result of an ingestion request.
type TestPayload struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	RawText     string   `json:"rawText"`
	Confidence  *float64 `json:"confidence"`
	Timestamp   int64    `json:"timestamp"`
	ImageBase64 string   `json:"imageBase64"`
	ImageType   string   `json:"imageType"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// UploadFilter narrows upload list queries. Zero values mean "no filter";
// the date bounds are inclusive epoch milliseconds.
type UploadFilter struct {
	UserID    string
	PanelID   string
	MonthName string
	StartDate *int64
	EndDate   *int64
}
