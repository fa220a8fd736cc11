package service

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

// trendEpsilon is the band, in percentage points, inside which a change counts as stable.
const trendEpsilon = 1e-6

// AggregateOptions tunes AggregateForm.
type AggregateOptions struct {
	Batching models.TrendBatching
	Now      func() time.Time
}

// AggregateForm derives per-field and per-category analytics for entries submitted against
// template. It never fails: unreadable values are skipped and counted in Warnings. It keeps
// no state between calls and is safe for concurrent use.
func AggregateForm(template models.FormTemplate, entries []models.FormResponseEntry, opts AggregateOptions) models.FormAnalytics {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	ordered := make([]models.FormResponseEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt) })
	batches := splitBatches(ordered, models.ParseTrendBatching(string(opts.Batching)))

	result := models.FormAnalytics{
		TemplateID:        template.ID,
		TemplateVersion:   template.Version,
		FieldAnalytics:    make(map[string]models.FieldAnalyticsResult),
		CategoryAnalytics: make(map[string]models.CategoryAnalytics),
		TotalEntries:      len(entries),
		Batches:           len(batches),
	}

	type categoryAcc struct {
		sum      float64
		fieldIDs []string
	}
	categories := make(map[string]*categoryAcc)
	var categoryOrder []string

	for _, ref := range template.Fields() {
		cfg := ref.Field.Analytics
		if !cfg.Enabled || !cfg.Type.Valid() {
			continue
		}

		values := collectValues(ref, ordered, &result.Warnings)
		stat := computeStatistic(ref.Field, values, &result.Warnings)

		fieldResult := models.FieldAnalyticsResult{
			FieldID:       ref.Field.ID,
			FieldLabel:    ref.Field.Label,
			SectionID:     ref.Section.ID,
			AnalyticsType: cfg.Type,
			Category:      cfg.Category,
			Value:         stat.value,
			Distribution:  stat.distribution,
			SampleSize:    stat.sample,
		}
		if cfg.Type.Scalar() && len(batches) >= 2 {
			fieldResult.Trend, fieldResult.TrendPercentage = fieldTrend(ref, cfg, batches[len(batches)-2], batches[len(batches)-1])
		}
		result.FieldAnalytics[ref.Field.ID] = fieldResult

		if cfg.Category == "" {
			continue
		}
		acc, ok := categories[cfg.Category]
		if !ok {
			acc = &categoryAcc{}
			categories[cfg.Category] = acc
			categoryOrder = append(categoryOrder, cfg.Category)
		}
		if cfg.Type.Scalar() && stat.value != nil {
			acc.sum += *stat.value
			acc.fieldIDs = append(acc.fieldIDs, ref.Field.ID)
		}
	}

	for _, name := range categoryOrder {
		acc := categories[name]
		rollup := models.CategoryAnalytics{Category: name, FieldCount: len(acc.fieldIDs), FieldIDs: acc.fieldIDs}
		if rollup.FieldIDs == nil {
			rollup.FieldIDs = []string{}
		}
		if len(acc.fieldIDs) > 0 {
			rollup.Average = floatPtr(acc.sum / float64(len(acc.fieldIDs)))
		}
		result.CategoryAnalytics[name] = rollup
	}

	result.GeneratedAt = now().UTC()
	return result
}

type statistic struct {
	value        *float64
	distribution map[string]int
	sample       int
}

func fieldTrend(ref models.FieldRef, cfg models.FieldAnalytics, prior, recent []models.FormResponseEntry) (*models.Trend, *float64) {
	var discard int
	before := computeStatistic(ref.Field, collectValues(ref, prior, &discard), &discard)
	after := computeStatistic(ref.Field, collectValues(ref, recent, &discard), &discard)
	if before.value == nil || after.value == nil {
		return nil, nil
	}

	pct := relativeChange(*before.value, *after.value)
	trend := models.TrendStable
	switch {
	case math.Abs(pct) <= trendEpsilon:
		pct = 0
	case (pct > 0) == cfg.HigherIsBetter():
		trend = models.TrendImproving
	default:
		trend = models.TrendDeclining
	}
	return &trend, &pct
}

// relativeChange is the signed change in percent. A zero baseline maps to ±100.
func relativeChange(prior, recent float64) float64 {
	if prior == 0 {
		switch {
		case recent > 0:
			return 100
		case recent < 0:
			return -100
		default:
			return 0
		}
	}
	return (recent - prior) / math.Abs(prior) * 100
}

// collectValues flattens a field's values across entries. Repeatable sections contribute
// one value per instance. Missing values are skipped silently; a section of the wrong shape
// or a structured value where a scalar belongs counts as a warning.
func collectValues(ref models.FieldRef, entries []models.FormResponseEntry, warnings *int) []interface{} {
	var values []interface{}
	for _, entry := range entries {
		raw, ok := entry.Responses[ref.Section.ID]
		if !ok || raw == nil {
			continue
		}
		records, ok := sectionRecords(raw)
		if !ok {
			*warnings++
			continue
		}
		for _, record := range records {
			if record == nil {
				*warnings++
				continue
			}
			value, present := record[ref.Field.ID]
			if !present || value == nil {
				continue
			}
			if _, isObject := value.(map[string]interface{}); isObject {
				*warnings++
				continue
			}
			values = append(values, value)
		}
	}
	return values
}

// sectionRecords accepts both a single record and a list of records so entries stay
// readable when a section's repeatability changed between template versions.
func sectionRecords(raw interface{}) ([]map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}, true
	case models.SectionRecord:
		return []map[string]interface{}{v}, true
	case []map[string]interface{}:
		return v, true
	case []models.SectionRecord:
		records := make([]map[string]interface{}, len(v))
		for i := range v {
			records[i] = v[i]
		}
		return records, true
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			switch rec := item.(type) {
			case map[string]interface{}:
				records = append(records, rec)
			case models.SectionRecord:
				records = append(records, rec)
			default:
				records = append(records, nil)
			}
		}
		return records, true
	default:
		return nil, false
	}
}

func computeStatistic(field models.Field, values []interface{}, warnings *int) statistic {
	kind := field.Analytics.Type
	switch kind {
	case models.AnalyticsAverage, models.AnalyticsSum:
		var total float64
		var n int
		for _, v := range values {
			f, ok := toNumber(v)
			if !ok {
				*warnings++
				continue
			}
			total += f
			n++
		}
		if n == 0 {
			return statistic{}
		}
		if kind == models.AnalyticsAverage {
			return statistic{value: floatPtr(total / float64(n)), sample: n}
		}
		return statistic{value: floatPtr(total), sample: n}

	case models.AnalyticsPercentage:
		var positive, n int
		for _, v := range values {
			yes, ok := toPositive(v, field.Options)
			if !ok {
				*warnings++
				continue
			}
			n++
			if yes {
				positive++
			}
		}
		if n == 0 {
			return statistic{}
		}
		return statistic{value: floatPtr(float64(positive) / float64(n) * 100), sample: n}

	case models.AnalyticsDistribution:
		dist := make(map[string]int)
		var n int
		for _, v := range values {
			keys, ok := optionKeys(v)
			if !ok {
				*warnings++
				continue
			}
			if len(keys) == 0 {
				continue
			}
			n++
			for _, key := range keys {
				dist[key]++
			}
		}
		return statistic{distribution: dist, sample: n}

	case models.AnalyticsConsistency:
		counts := make(map[string]int)
		var n, mode int
		for _, v := range values {
			keys, ok := optionKeys(v)
			if !ok {
				*warnings++
				continue
			}
			if len(keys) == 0 {
				continue
			}
			sort.Strings(keys)
			key := strings.Join(keys, "|")
			counts[key]++
			if counts[key] > mode {
				mode = counts[key]
			}
			n++
		}
		if n == 0 {
			return statistic{}
		}
		return statistic{value: floatPtr(float64(mode) / float64(n) * 100), sample: n}
	}
	return statistic{}
}

func toNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toPositive reads a checkbox or choice answer. Declared options outside the recognised
// truthy words count as answered but negative; unknown strings are unreadable.
func toPositive(v interface{}, options []string) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1", "on":
			return true, true
		case "false", "no", "n", "0", "off", "":
			return false, true
		}
		if containsOption(options, strings.TrimSpace(b)) {
			return false, true
		}
		return false, false
	case []interface{}:
		return len(b) > 0, true
	case []string:
		return len(b) > 0, true
	}
	if f, ok := toNumber(v); ok {
		return f > 0, true
	}
	return false, false
}

// optionKeys renders a value as the literal option strings it selects.
func optionKeys(v interface{}) ([]string, bool) {
	switch o := v.(type) {
	case string:
		if s := strings.TrimSpace(o); s != "" {
			return []string{s}, true
		}
		return nil, true
	case bool:
		return []string{strconv.FormatBool(o)}, true
	case []string:
		return nonEmpty(o), true
	case []interface{}:
		keys := make([]string, 0, len(o))
		for _, item := range o {
			sub, ok := optionKeys(item)
			if !ok || len(sub) > 1 {
				return nil, false
			}
			keys = append(keys, sub...)
		}
		return keys, true
	}
	if f, ok := toNumber(v); ok {
		return []string{strconv.FormatFloat(f, 'f', -1, 64)}, true
	}
	return nil, false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitBatches cuts submission-ordered entries into time-ordered batches.
func splitBatches(entries []models.FormResponseEntry, batching models.TrendBatching) [][]models.FormResponseEntry {
	if len(entries) == 0 {
		return nil
	}
	if batching == models.BatchHalves {
		if len(entries) < 2 {
			return [][]models.FormResponseEntry{entries}
		}
		mid := len(entries) / 2
		return [][]models.FormResponseEntry{entries[:mid], entries[mid:]}
	}

	var batches [][]models.FormResponseEntry
	var current time.Time
	for i, entry := range entries {
		key := batchStart(entry.SubmittedAt, batching)
		if i == 0 || !key.Equal(current) {
			batches = append(batches, nil)
			current = key
		}
		batches[len(batches)-1] = append(batches[len(batches)-1], entry)
	}
	return batches
}

func batchStart(t time.Time, batching models.TrendBatching) time.Time {
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch batching {
	case models.BatchWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.BatchMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
