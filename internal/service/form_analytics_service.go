package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/export"
)

const formAnalyticsCacheNamespace = "analytics:form"

type formResponseReader interface {
	List(ctx context.Context, filter models.FormResponseFilter) ([]models.FormResponseEntry, error)
}

// FormAnalyticsService loads a template with its entries, aggregates them and caches the
// derived view. Cached results are dropped whenever the template or its entries change.
type FormAnalyticsService struct {
	templates formTemplateReader
	responses formResponseReader
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	batching  models.TrendBatching
	ttl       time.Duration
}

// NewFormAnalyticsService constructs the service. cache and metrics may be nil.
func NewFormAnalyticsService(templates formTemplateReader, responses formResponseReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, batching models.TrendBatching, ttl time.Duration) *FormAnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormAnalyticsService{
		templates: templates,
		responses: responses,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		batching:  models.ParseTrendBatching(string(batching)),
		ttl:       ttl,
	}
}

// Analytics returns the aggregate for query. The boolean reports a cache hit.
//
// Admins see every template, coaches their own, students only their own entries.
func (s *FormAnalyticsService) Analytics(ctx context.Context, actor *models.Identity, query models.FormAnalyticsQuery) (*models.FormAnalytics, bool, error) {
	tpl, err := s.templates.FindByID(ctx, query.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	switch {
	case actor.IsAdmin():
	case actor != nil && actor.Role == models.RoleCoach && tpl.OwnerID == actor.ID:
	case actor != nil && actor.Role == models.RoleStudent:
		query.StudentID = actor.ID
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view analytics for this template")
	}
	if query.Batching == "" {
		query.Batching = s.batching
	}
	query.Batching = models.ParseTrendBatching(string(query.Batching))

	key := makeCacheKey(formAnalyticsCacheNamespace, tpl.ID, query.StudentID, string(query.Batching), strconv.Itoa(tpl.Version))
	var cached models.FormAnalytics
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	entries, err := s.responses.List(ctx, models.FormResponseFilter{TemplateID: tpl.ID, StudentID: query.StudentID})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	s.metrics.ObserveDBQuery("form_analytics_entries", time.Since(start))

	start = time.Now()
	result := AggregateForm(*tpl, entries, AggregateOptions{Batching: query.Batching})
	s.metrics.ObserveAggregation(time.Since(start), result.Warnings)
	if result.Warnings > 0 {
		s.logger.Info("aggregation skipped unreadable values",
			zap.String("template_id", tpl.ID),
			zap.Int("warnings", result.Warnings),
			zap.Int("entries", result.TotalEntries),
		)
	}

	s.cache.Set(ctx, key, result, s.ttl)
	return &result, false, nil
}

// Invalidate drops every cached aggregate of a template.
func (s *FormAnalyticsService) Invalidate(ctx context.Context, templateID string) {
	s.cache.Invalidate(ctx, makeCacheKey(formAnalyticsCacheNamespace, templateID)+":*")
}

// ExportedFile is a rendered analytics report.
type ExportedFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// Export renders the analytics of query as CSV, PDF or XLSX.
func (s *FormAnalyticsService) Export(ctx context.Context, actor *models.Identity, query models.FormAnalyticsQuery, format export.Format) (*ExportedFile, error) {
	result, _, err := s.Analytics(ctx, actor, query)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.FindByID(ctx, query.TemplateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	payload, err := export.Render(format, AnalyticsDataset(*tpl, *result))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportedFile{
		Filename:    fmt.Sprintf("form-analytics-%s.%s", tpl.ID, format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// AnalyticsDataset flattens an aggregate into export rows: one per field in template order,
// followed by one per category.
func AnalyticsDataset(tpl models.FormTemplate, result models.FormAnalytics) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("%s analytics", tpl.Name),
		Headers: []string{"scope", "id", "label", "type", "category", "value", "sample", "trend", "trend_pct", "distribution"},
	}

	for _, ref := range tpl.Fields() {
		fr, ok := result.FieldAnalytics[ref.Field.ID]
		if !ok {
			continue
		}
		row := map[string]string{
			"scope":    "field",
			"id":       fr.FieldID,
			"label":    fr.FieldLabel,
			"type":     string(fr.AnalyticsType),
			"category": fr.Category,
			"value":    formatStat(fr.Value),
			"sample":   strconv.Itoa(fr.SampleSize),
		}
		if fr.Trend != nil {
			row["trend"] = string(*fr.Trend)
			row["trend_pct"] = formatStat(fr.TrendPercentage)
		}
		if len(fr.Distribution) > 0 {
			row["distribution"] = formatDistribution(fr.Distribution)
		}
		data.Rows = append(data.Rows, row)
	}

	names := make([]string, 0, len(result.CategoryAnalytics))
	for name := range result.CategoryAnalytics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cat := result.CategoryAnalytics[name]
		data.Rows = append(data.Rows, map[string]string{
			"scope":  "category",
			"id":     cat.Category,
			"label":  cat.Category,
			"type":   "category_average",
			"value":  formatStat(cat.Average),
			"sample": strconv.Itoa(cat.FieldCount),
		})
	}
	return data
}

func formatStat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatDistribution(dist map[string]int) string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s=%d", k, dist[k])
	}
	return out
}
