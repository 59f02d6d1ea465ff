package services

import (
	"context"
	"math"

	"github.com/dphs-ocr/apiserver/internal/apperr"
	"github.com/dphs-ocr/apiserver/types"
)

// recentUploadsLimit caps the recent-uploads timeline.
const recentUploadsLimit = 10

// StatsRepository defines the aggregate queries behind statistics.
type StatsRepository interface {
	Overview(ctx context.Context, filter types.StatsFilter) (uploads, tests, panels int, err error)
	UploadsByMonth(ctx context.Context, filter types.StatsFilter) ([]types.MonthCount, error)
	UploadsByPanel(ctx context.Context, filter types.StatsFilter) ([]types.PanelCount, error)
	TestStatistics(ctx context.Context, filter types.StatsFilter) ([]types.TestTypeStats, error)
	TestsByType(ctx context.Context, filter types.StatsFilter) ([]types.TestTypeCount, error)
	HourlyDistribution(ctx context.Context, filter types.StatsFilter) ([]types.HourCount, error)
	ConfidenceStats(ctx context.Context, filter types.StatsFilter) (*types.ConfidenceStats, error)
	RecentUploads(ctx context.Context, filter types.StatsFilter, limit int) ([]types.RecentUpload, error)
}

// StatsService assembles the statistics view.
type StatsService struct {
	repo StatsRepository
}

func NewStatsService(repo StatsRepository) *StatsService {
	return &StatsService{repo: repo}
}

// Get computes the full statistics response under the given filter.
// Values are rounded to 2 decimals and confidences to 3 for display;
// counts stay integers.
func (s *StatsService) Get(ctx context.Context, filter types.StatsFilter) (types.Statistics, error) {
	uploads, tests, panels, err := s.repo.Overview(ctx, filter)
	if err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}

	stats := types.Statistics{
		Overview: types.StatsOverview{
			TotalUploads: uploads,
			TotalTests:   tests,
			TotalPanels:  panels,
		},
	}
	if uploads > 0 {
		stats.Overview.AvgTestsPerUpload = round2(float64(tests) / float64(uploads))
	}

	if stats.UploadsByMonth, err = s.repo.UploadsByMonth(ctx, filter); err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}
	if stats.UploadsByPanel, err = s.repo.UploadsByPanel(ctx, filter); err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}

	testStats, err := s.repo.TestStatistics(ctx, filter)
	if err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}
	for i := range testStats {
		testStats[i].Average = round2(testStats[i].Average)
		testStats[i].Min = round2(testStats[i].Min)
		testStats[i].Max = round2(testStats[i].Max)
	}
	stats.TestStatistics = testStats

	if stats.TestsByType, err = s.repo.TestsByType(ctx, filter); err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}
	if stats.HourlyDistribution, err = s.repo.HourlyDistribution(ctx, filter); err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}

	confidence, err := s.repo.ConfidenceStats(ctx, filter)
	if err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}
	if confidence != nil {
		confidence.Average = round3(confidence.Average)
		confidence.Min = round3(confidence.Min)
		confidence.Max = round3(confidence.Max)
	}
	stats.ConfidenceStats = confidence

	if stats.RecentUploads, err = s.repo.RecentUploads(ctx, filter, recentUploadsLimit); err != nil {
		return types.Statistics{}, apperr.Internal("Failed to compute statistics", err)
	}

	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
