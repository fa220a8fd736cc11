package models

import "time"

// Trend classifies a statistic's movement between two batches.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// TrendBatching selects how entries are split into time-ordered batches.
type TrendBatching string

const (
	BatchHalves TrendBatching = "halves"
	BatchDay    TrendBatching = "day"
	BatchWeek   TrendBatching = "week"
	BatchMonth  TrendBatching = "month"
)

// ParseTrendBatching falls back to halves for unknown input.
func ParseTrendBatching(raw string) TrendBatching {
	switch TrendBatching(raw) {
	case BatchDay, BatchWeek, BatchMonth:
		return TrendBatching(raw)
	default:
		return BatchHalves
	}
}

// FieldAnalyticsResult is the derived statistic for one analytics-enabled field.
// Value is nil when no entry contributed, which renders as N/A.
type FieldAnalyticsResult struct {
	FieldID         string         `json:"fieldId"`
	FieldLabel      string         `json:"fieldLabel"`
	SectionID       string         `json:"sectionId"`
	AnalyticsType   AnalyticsType  `json:"analyticsType"`
	Category        string         `json:"category,omitempty"`
	Value           *float64       `json:"value"`
	Distribution    map[string]int `json:"distribution,omitempty"`
	SampleSize      int            `json:"sampleSize"`
	Trend           *Trend         `json:"trend,omitempty"`
	TrendPercentage *float64       `json:"trendPercentage,omitempty"`
}

// CategoryAnalytics rolls up scalar field statistics sharing a category.
type CategoryAnalytics struct {
	Category   string   `json:"category"`
	Average    *float64 `json:"average"`
	FieldCount int      `json:"fieldCount"`
	FieldIDs   []string `json:"fieldIds"`
}

// FormAnalytics is the ephemeral aggregation of a response set against a template.
type FormAnalytics struct {
	TemplateID        string                          `json:"templateId"`
	TemplateVersion   int                             `json:"templateVersion"`
	FieldAnalytics    map[string]FieldAnalyticsResult `json:"fieldAnalytics"`
	CategoryAnalytics map[string]CategoryAnalytics    `json:"categoryAnalytics"`
	TotalEntries      int                             `json:"totalEntries"`
	Batches           int                             `json:"batches"`
	Warnings          int                             `json:"warnings"`
	GeneratedAt       time.Time                       `json:"generatedAt"`
}

// FormAnalyticsQuery scopes an analytics request.
type FormAnalyticsQuery struct {
	TemplateID string
	StudentID  string
	Batching   TrendBatching
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Aggregations             uint64    `json:"aggregations"`
	AggregationWarnings      uint64    `json:"aggregation_warnings"`
	AuthzAllowed             uint64    `json:"authz_allowed"`
	AuthzDenied              uint64    `json:"authz_denied"`
	RateLimited              uint64    `json:"rate_limited"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
