package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dphs-ocr/apiserver/types"
	"github.com/lib/pq"
)

// StatsRepository runs the aggregate queries behind GET /api/stats.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// uploadWhere builds a WHERE clause over the uploads table (aliased u).
func uploadWhere(filter types.StatsFilter) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("u.user_id = $%d", len(args)))
	}
	if filter.PanelID != "" {
		args = append(args, filter.PanelID)
		clauses = append(clauses, fmt.Sprintf("u.panel_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Overview returns the upload count, test count, and distinct panel count
// under the filter.
func (r *StatsRepository) Overview(ctx context.Context, filter types.StatsFilter) (uploads, tests, panels int, err error) {
	where, args := uploadWhere(filter)

	uploadQuery := `SELECT COUNT(1), COUNT(DISTINCT u.panel_id) FROM uploads u` + where
	if err = r.db.QueryRowContext(ctx, uploadQuery, args...).Scan(&uploads, &panels); err != nil {
		return 0, 0, 0, err
	}

	testQuery := `SELECT COUNT(1) FROM test_records t JOIN uploads u ON u.id = t.upload_id` + where
	if err = r.db.QueryRowContext(ctx, testQuery, args...).Scan(&tests); err != nil {
		return 0, 0, 0, err
	}
	return uploads, tests, panels, nil
}

// UploadsByMonth returns per-month upload counts, most uploads first.
func (r *StatsRepository) UploadsByMonth(ctx context.Context, filter types.StatsFilter) ([]types.MonthCount, error) {
	where, args := uploadWhere(filter)
	query := `
		SELECT u.month_name, COUNT(1)
		FROM uploads u` + where + `
		GROUP BY u.month_name
		ORDER BY COUNT(1) DESC, u.month_name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.MonthCount, 0)
	for rows.Next() {
		var mc types.MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

// UploadsByPanel returns per-panel upload counts, most uploads first.
func (r *StatsRepository) UploadsByPanel(ctx context.Context, filter types.StatsFilter) ([]types.PanelCount, error) {
	where, args := uploadWhere(filter)
	query := `
		SELECT u.panel_id, COUNT(1)
		FROM uploads u` + where + `
		GROUP BY u.panel_id
		ORDER BY COUNT(1) DESC, u.panel_id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.PanelCount, 0)
	for rows.Next() {
		var pc types.PanelCount
		if err := rows.Scan(&pc.PanelID, &pc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}

// TestStatistics aggregates valid, non-null result values per test type.
func (r *StatsRepository) TestStatistics(ctx context.Context, filter types.StatsFilter) ([]types.TestTypeStats, error) {
	where, args := uploadWhere(filter)
	base := `
		SELECT t.test_type, COUNT(1), AVG(t.result_value), MIN(t.result_value), MAX(t.result_value)
		FROM test_records t
		JOIN uploads u ON u.id = t.upload_id`
	cond := "t.result_value IS NOT NULL AND t.is_valid_result"
	if where == "" {
		base += " WHERE " + cond
	} else {
		base += where + " AND " + cond
	}
	base += `
		GROUP BY t.test_type
		ORDER BY t.test_type`

	rows, err := r.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]types.TestTypeStats, 0)
	for rows.Next() {
		var ts types.TestTypeStats
		if err := rows.Scan(&ts.TestType, &ts.Count, &ts.Average, &ts.Min, &ts.Max); err != nil {
			return nil, err
		}
		stats = append(stats, ts)
	}
	return stats, rows.Err()
}

// TestsByType returns raw record counts per test type.
func (r *StatsRepository) TestsByType(ctx context.Context, filter types.StatsFilter) ([]types.TestTypeCount, error) {
	where, args := uploadWhere(filter)
	query := `
		SELECT t.test_type, COUNT(1)
		FROM test_records t
		JOIN uploads u ON u.id = t.upload_id` + where + `
		GROUP BY t.test_type
		ORDER BY t.test_type`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.TestTypeCount, 0)
	for rows.Next() {
		var tc types.TestTypeCount
		if err := rows.Scan(&tc.TestType, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// HourlyDistribution buckets test validation timestamps by UTC hour of day.
// Pinning the zone keeps the buckets stable across database session settings.
func (r *StatsRepository) HourlyDistribution(ctx context.Context, filter types.StatsFilter) ([]types.HourCount, error) {
	where, args := uploadWhere(filter)
	query := `
		SELECT EXTRACT(HOUR FROM to_timestamp(t.validation_timestamp / 1000.0) AT TIME ZONE 'UTC')::int AS hour, COUNT(1)
		FROM test_records t
		JOIN uploads u ON u.id = t.upload_id` + where + `
		GROUP BY hour
		ORDER BY hour`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.HourCount, 0)
	for rows.Next() {
		var hc types.HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, hc)
	}
	return counts, rows.Err()
}

// ConfidenceStats aggregates OCR confidence over records that reported one.
// Returns nil when no record carries a confidence.
func (r *StatsRepository) ConfidenceStats(ctx context.Context, filter types.StatsFilter) (*types.ConfidenceStats, error) {
	where, args := uploadWhere(filter)
	base := `
		SELECT AVG(t.confidence), MIN(t.confidence), MAX(t.confidence)
		FROM test_records t
		JOIN uploads u ON u.id = t.upload_id`
	cond := "t.confidence IS NOT NULL"
	if where == "" {
		base += " WHERE " + cond
	} else {
		base += where + " AND " + cond
	}

	var avg, min, max sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, base, args...).Scan(&avg, &min, &max); err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &types.ConfidenceStats{
		Average: avg.Float64,
		Min:     min.Float64,
		Max:     max.Float64,
	}, nil
}

// RecentUploads returns the latest uploads with their test-type/value pairs.
func (r *StatsRepository) RecentUploads(ctx context.Context, filter types.StatsFilter, limit int) ([]types.RecentUpload, error) {
	where, args := uploadWhere(filter)
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT u.id, u.panel_id, u.user_id, u.user_name, u.upload_datetime, u.month_name,
			u.latitude, u.longitude
		FROM uploads u%s
		ORDER BY u.upload_timestamp DESC
		LIMIT $%d`, where, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := make([]types.RecentUpload, 0, limit)
	index := make(map[string]int)
	for rows.Next() {
		var ru types.RecentUpload
		if err := rows.Scan(
			&ru.ID,
			&ru.PanelID,
			&ru.UserID,
			&ru.UserName,
			&ru.UploadDateTime,
			&ru.MonthName,
			&ru.Location.Latitude,
			&ru.Location.Longitude,
		); err != nil {
			return nil, err
		}
		ru.Tests = []types.RecentTest{}
		index[ru.ID] = len(recent)
		recent = append(recent, ru)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return recent, nil
	}

	ids := make([]string, 0, len(recent))
	for _, ru := range recent {
		ids = append(ids, ru.ID)
	}
	testRows, err := r.db.QueryContext(ctx, `
		SELECT upload_id, test_type, result_value
		FROM test_records
		WHERE upload_id = ANY($1)
		ORDER BY upload_id, test_number`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer testRows.Close()

	for testRows.Next() {
		var uploadID string
		var test types.RecentTest
		if err := testRows.Scan(&uploadID, &test.TestType, &test.Value); err != nil {
			return nil, err
		}
		if i, ok := index[uploadID]; ok {
			recent[i].Tests = append(recent[i].Tests, test)
			recent[i].TestCount++
		}
	}
	return recent, testRows.Err()
}
