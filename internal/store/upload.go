package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dphs-ocr/apiserver/types"
	"github.com/lib/pq"
)

const uploadColumns = `
	id, upload_timestamp, upload_datetime, month_name, panel_id,
	user_id, user_name, phc_name, hub_name, block_name, district_name,
	latitude, longitude, pdf_file_name, pdf_url, created_at, updated_at`

const testRecordColumns = `
	id, upload_id, test_name, test_number, test_type, test_display_name,
	result_value, unit, raw_ocr_text, confidence,
	validation_timestamp, validation_datetime, image_file_name, image_url,
	is_valid_result, latitude, longitude, created_at, updated_at`

// UploadRepository handles persistence for uploads and their test records.
type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts the upload and all of its test records in one transaction.
// Returns ErrDuplicate if the upload id or one of the test ids already exists.
func (r *UploadRepository) Create(ctx context.Context, upload types.Upload) error {
	now := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertUpload = `
		INSERT INTO uploads (
			id, upload_timestamp, upload_datetime, month_name, panel_id,
			user_id, user_name, phc_name, hub_name, block_name, district_name,
			latitude, longitude, pdf_file_name, pdf_url, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := tx.ExecContext(
		ctx,
		insertUpload,
		upload.ID,
		upload.UploadTimestamp,
		upload.UploadDateTime,
		upload.MonthName,
		upload.PanelID,
		upload.UserID,
		upload.UserName,
		upload.PHCName,
		upload.HubName,
		upload.BlockName,
		upload.DistrictName,
		upload.Latitude,
		upload.Longitude,
		upload.PDFFileName,
		upload.PDFURL,
		now,
		now,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	const insertTest = `
		INSERT INTO test_records (
			id, upload_id, test_name, test_number, test_type, test_display_name,
			result_value, unit, raw_ocr_text, confidence,
			validation_timestamp, validation_datetime, image_file_name, image_url,
			is_valid_result, latitude, longitude, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	for _, record := range upload.TestRecords {
		if _, err := tx.ExecContext(
			ctx,
			insertTest,
			record.ID,
			record.UploadID,
			record.TestName,
			record.TestNumber,
			record.TestType,
			record.TestDisplayName,
			record.ResultValue,
			record.Unit,
			record.RawOCRText,
			record.Confidence,
			record.ValidationTimestamp,
			record.ValidationDateTime,
			record.ImageFileName,
			record.ImageURL,
			record.IsValidResult,
			record.Latitude,
			record.Longitude,
			now,
			now,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("test %s: %w", record.ID, ErrDuplicateTest)
			}
			return err
		}
	}

	return tx.Commit()
}

// GetByID loads one upload with its test records.
func (r *UploadRepository) GetByID(ctx context.Context, id string) (types.Upload, error) {
	const query = `SELECT` + uploadColumns + `
		FROM uploads
		WHERE id = $1`
	upload, err := scanUpload(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Upload{}, err
	}

	records, err := r.testRecordsFor(ctx, []string{id})
	if err != nil {
		return types.Upload{}, err
	}
	upload.TestRecords = records[id]
	if upload.TestRecords == nil {
		upload.TestRecords = []types.TestRecord{}
	}
	return upload, nil
}

// List returns uploads matching the filter, newest first, each with its
// test records attached.
func (r *UploadRepository) List(ctx context.Context, filter types.UploadFilter) ([]types.Upload, error) {
	query := `SELECT` + uploadColumns + `
		FROM uploads`
	where, args := uploadFilterClauses(filter)
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY upload_timestamp DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := make([]types.Upload, 0)
	ids := make([]string, 0)
	for rows.Next() {
		upload, err := scanUploadRows(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
		ids = append(ids, upload.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return uploads, nil
	}

	records, err := r.testRecordsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range uploads {
		uploads[i].TestRecords = records[uploads[i].ID]
		if uploads[i].TestRecords == nil {
			uploads[i].TestRecords = []types.TestRecord{}
		}
	}
	return uploads, nil
}

// GetTestRecord loads one test record of an upload by its synthetic name
// (test-1, test-2, test-3).
func (r *UploadRepository) GetTestRecord(ctx context.Context, uploadID, testName string) (types.TestRecord, error) {
	const query = `SELECT` + testRecordColumns + `
		FROM test_records
		WHERE upload_id = $1 AND test_name = $2`
	rows, err := r.db.QueryContext(ctx, query, uploadID, testName)
	if err != nil {
		return types.TestRecord{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.TestRecord{}, err
		}
		return types.TestRecord{}, ErrNotFound
	}
	return scanTestRecord(rows)
}

// Delete removes the upload row; test records go with it via cascade.
func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM uploads WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UploadRepository) testRecordsFor(ctx context.Context, uploadIDs []string) (map[string][]types.TestRecord, error) {
	const query = `SELECT` + testRecordColumns + `
		FROM test_records
		WHERE upload_id = ANY($1)
		ORDER BY upload_id, test_number`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uploadIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string][]types.TestRecord)
	for rows.Next() {
		record, err := scanTestRecord(rows)
		if err != nil {
			return nil, err
		}
		records[record.UploadID] = append(records[record.UploadID], record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func uploadFilterClauses(filter types.UploadFilter) ([]string, []any) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 5)

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.PanelID != "" {
		add("panel_id = $%d", filter.PanelID)
	}
	if filter.MonthName != "" {
		add("month_name = $%d", filter.MonthName)
	}
	if filter.StartDate != nil {
		add("upload_timestamp >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("upload_timestamp <= $%d", *filter.EndDate)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUploadFields(scanner rowScanner) (types.Upload, error) {
	var upload types.Upload
	err := scanner.Scan(
		&upload.ID,
		&upload.UploadTimestamp,
		&upload.UploadDateTime,
		&upload.MonthName,
		&upload.PanelID,
		&upload.UserID,
		&upload.UserName,
		&upload.PHCName,
		&upload.HubName,
		&upload.BlockName,
		&upload.DistrictName,
		&upload.Latitude,
		&upload.Longitude,
		&upload.PDFFileName,
		&upload.PDFURL,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	)
	return upload, err
}

func scanUpload(row *sql.Row) (types.Upload, error) {
	upload, err := scanUploadFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Upload{}, ErrNotFound
		}
		return types.Upload{}, err
	}
	return upload, nil
}

func scanUploadRows(rows *sql.Rows) (types.Upload, error) {
	return scanUploadFields(rows)
}

func scanTestRecord(rows *sql.Rows) (types.TestRecord, error) {
	var record types.TestRecord
	err := rows.Scan(
		&record.ID,
		&record.UploadID,
		&record.TestName,
		&record.TestNumber,
		&record.TestType,
		&record.TestDisplayName,
		&record.ResultValue,
		&record.Unit,
		&record.RawOCRText,
		&record.Confidence,
		&record.ValidationTimestamp,
		&record.ValidationDateTime,
		&record.ImageFileName,
		&record.ImageURL,
		&record.IsValidResult,
		&record.Latitude,
		&record.Longitude,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}
