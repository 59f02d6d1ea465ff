package types

// Statistics is the aggregate view served by GET /api/stats.
type Statistics struct {
	Overview           StatsOverview    `json:"overview"`
	UploadsByMonth     []MonthCount     `json:"uploadsByMonth"`
	UploadsByPanel     []PanelCount     `json:"uploadsByPanel"`
	TestStatistics     []TestTypeStats  `json:"testStatistics"`
	TestsByType        []TestTypeCount  `json:"testsByType"`
	HourlyDistribution []HourCount      `json:"hourlyDistribution"`
	ConfidenceStats    *ConfidenceStats `json:"confidenceStats"`
	RecentUploads      []RecentUpload   `json:"recentUploads"`
}

// StatsOverview summarizes the whole corpus under the active filter.
type StatsOverview struct {
	TotalUploads int `json:"totalUploads"`
	TotalTests   int `json:"totalTests"`
	// TotalPanels is the number of distinct panel IDs seen.
	TotalPanels int `json:"totalPanels"`
	// AvgTestsPerUpload is TotalTests/TotalUploads rounded to 2 decimals,
	// 0 when there are no uploads.
	AvgTestsPerUpload float64 `json:"avgTestsPerUpload"`
}

// MonthCount is an upload count for one month label.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// PanelCount is an upload count for one panel.
type PanelCount struct {
	PanelID string `json:"panelId"`
	Count   int    `json:"count"`
}

// TestTypeStats aggregates valid, non-null results for one test type.
type TestTypeStats struct {
	TestType TestType `json:"testType"`
	Count    int      `json:"count"`
	Average  float64  `json:"average"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
}

// TestTypeCount is a raw record count for one test type.
type TestTypeCount struct {
	TestType TestType `json:"testType"`
	Count    int      `json:"count"`
}

// HourCount is the number of tests validated during one hour of day (0-23).
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// ConfidenceStats aggregates OCR confidence over records that reported one.
type ConfidenceStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// RecentUpload is one entry of the recent-uploads timeline.
type RecentUpload struct {
	ID             string       `json:"id"`
	PanelID        string       `json:"panelId"`
	UserID         string       `json:"userId"`
	UserName       string       `json:"userName"`
	UploadDateTime string       `json:"uploadDateTime"`
	MonthName      string       `json:"monthName"`
	TestCount      int          `json:"testCount"`
	Location       Location     `json:"location"`
	Tests          []RecentTest `json:"tests"`
}

// RecentTest is a test-type/value pair within a recent upload.
type RecentTest struct {
	TestType TestType `json:"testType"`
	Value    *float64 `json:"value"`
}

// Location is a nullable GPS coordinate pair.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// StatsFilter narrows statistics queries. Zero values mean "no filter".
type StatsFilter struct {
	UserID  string
	PanelID string
}
