package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

var aggregateEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func analyticsTemplate() models.FormTemplate {
	return models.FormTemplate{
		ID:       "tpl-1",
		Name:     "Weekly check-in",
		Version:  2,
		IsActive: true,
		Sections: []models.Section{
			{
				ID:    "drills",
				Order: 2,
				Fields: []models.Field{
					{ID: "sprint", Label: "Sprint time", Type: models.FieldNumber, Order: 1,
						Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsAverage, Category: "speed", Polarity: models.PolarityLowerIsBetter}},
				},
				IsRepeatable: true,
			},
			{
				ID:    "main",
				Order: 1,
				Fields: []models.Field{
					{ID: "effort", Label: "Effort", Type: models.FieldRating, Order: 1,
						Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsAverage, Category: "wellbeing"}},
					{ID: "mood", Label: "Mood", Type: models.FieldSelect, Order: 2, Options: []string{"A", "B", "C"},
						Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsDistribution, Category: "wellbeing"}},
					{ID: "stretched", Label: "Stretched", Type: models.FieldCheckbox, Order: 3,
						Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsPercentage}},
					{ID: "routine", Label: "Routine", Type: models.FieldRadio, Order: 4, Options: []string{"am", "pm"},
						Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsConsistency}},
					{ID: "notes", Label: "Notes", Type: models.FieldText, Order: 5},
				},
			},
		},
	}
}

func mainEntry(day int, record map[string]interface{}) models.FormResponseEntry {
	return models.FormResponseEntry{
		ID:          "e" + strconv.Itoa(day),
		TemplateID:  "tpl-1",
		StudentID:   "s1",
		Responses:   map[string]interface{}{"main": record},
		SubmittedAt: aggregateEpoch.AddDate(0, 0, day),
	}
}

func TestAggregateFormEmpty(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), nil, AggregateOptions{})

	assert.Equal(t, 0, result.TotalEntries)
	assert.Equal(t, 0, result.Batches)
	require.Len(t, result.FieldAnalytics, 5)
	for id, fr := range result.FieldAnalytics {
		assert.Nil(t, fr.Value, id)
		assert.Nil(t, fr.Trend, id)
		assert.Equal(t, 0, fr.SampleSize, id)
	}
	assert.NotContains(t, result.FieldAnalytics, "notes")
	assert.Nil(t, result.CategoryAnalytics["wellbeing"].Average)
	assert.Empty(t, result.CategoryAnalytics["wellbeing"].FieldIDs)
}

func TestAggregateFormAverageSkipsUnreadableValues(t *testing.T) {
	tpl := analyticsTemplate()

	clean := AggregateForm(tpl, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"effort": 2.0}),
		mainEntry(1, map[string]interface{}{"effort": 4.0}),
		mainEntry(2, map[string]interface{}{"effort": 6.0}),
	}, AggregateOptions{})
	require.NotNil(t, clean.FieldAnalytics["effort"].Value)
	assert.InDelta(t, 4.0, *clean.FieldAnalytics["effort"].Value, 1e-9)
	assert.Equal(t, 0, clean.Warnings)

	dirty := AggregateForm(tpl, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"effort": 2.0}),
		mainEntry(1, map[string]interface{}{"effort": "bad"}),
		mainEntry(2, map[string]interface{}{"effort": 6.0}),
	}, AggregateOptions{})
	require.NotNil(t, dirty.FieldAnalytics["effort"].Value)
	assert.InDelta(t, 4.0, *dirty.FieldAnalytics["effort"].Value, 1e-9)
	assert.Equal(t, 2, dirty.FieldAnalytics["effort"].SampleSize)
	assert.Equal(t, 1, dirty.Warnings)
}

func TestAggregateFormDistributionExcludedFromCategory(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"mood": "A", "effort": 3.0}),
		mainEntry(1, map[string]interface{}{"mood": "A", "effort": 5.0}),
		mainEntry(2, map[string]interface{}{"mood": "B"}),
	}, AggregateOptions{})

	mood := result.FieldAnalytics["mood"]
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, mood.Distribution)
	assert.Nil(t, mood.Value)

	wellbeing := result.CategoryAnalytics["wellbeing"]
	assert.Equal(t, []string{"effort"}, wellbeing.FieldIDs)
	assert.Equal(t, 1, wellbeing.FieldCount)
	require.NotNil(t, wellbeing.Average)
	assert.InDelta(t, 4.0, *wellbeing.Average, 1e-9)
}

func TestAggregateFormTrendImproving(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		mainEntry(3, map[string]interface{}{"effort": 11.0}),
		mainEntry(0, map[string]interface{}{"effort": 10.0}),
		mainEntry(1, map[string]interface{}{"effort": 10.0}),
		mainEntry(4, map[string]interface{}{"effort": 11.0}),
	}, AggregateOptions{Batching: models.BatchHalves})

	effort := result.FieldAnalytics["effort"]
	require.NotNil(t, effort.Trend)
	assert.Equal(t, models.TrendImproving, *effort.Trend)
	require.NotNil(t, effort.TrendPercentage)
	assert.InDelta(t, 10.0, *effort.TrendPercentage, 1e-6)
	assert.Equal(t, 2, result.Batches)
}

func TestAggregateFormTrendRespectsPolarityAndRepeatableSections(t *testing.T) {
	entry := func(day int, times ...float64) models.FormResponseEntry {
		var records []interface{}
		for _, v := range times {
			records = append(records, map[string]interface{}{"sprint": v})
		}
		return models.FormResponseEntry{
			Responses:   map[string]interface{}{"drills": records},
			SubmittedAt: aggregateEpoch.AddDate(0, 0, day),
		}
	}

	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		entry(0, 12, 14),
		entry(8, 14, 16),
	}, AggregateOptions{Batching: models.BatchWeek})

	sprint := result.FieldAnalytics["sprint"]
	assert.Equal(t, 4, sprint.SampleSize)
	require.NotNil(t, sprint.Value)
	assert.InDelta(t, 14.0, *sprint.Value, 1e-9)
	require.NotNil(t, sprint.Trend)
	// Slower sprint times are worse.
	assert.Equal(t, models.TrendDeclining, *sprint.Trend)
	assert.InDelta(t, 15.3846, *sprint.TrendPercentage, 1e-3)
}

func TestAggregateFormStableTrend(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"effort": 7.0}),
		mainEntry(1, map[string]interface{}{"effort": 7.0}),
	}, AggregateOptions{})

	effort := result.FieldAnalytics["effort"]
	require.NotNil(t, effort.Trend)
	assert.Equal(t, models.TrendStable, *effort.Trend)
	assert.Equal(t, 0.0, *effort.TrendPercentage)
}

func TestAggregateFormPercentageAndConsistency(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"stretched": true, "routine": "am"}),
		mainEntry(1, map[string]interface{}{"stretched": false, "routine": "am"}),
		mainEntry(2, map[string]interface{}{"stretched": true, "routine": "pm"}),
	}, AggregateOptions{})

	assert.InDelta(t, 66.6667, *result.FieldAnalytics["stretched"].Value, 1e-3)
	assert.InDelta(t, 66.6667, *result.FieldAnalytics["routine"].Value, 1e-3)
}

func TestAggregateFormCountsMalformedSections(t *testing.T) {
	result := AggregateForm(analyticsTemplate(), []models.FormResponseEntry{
		{Responses: map[string]interface{}{"main": "not a record"}, SubmittedAt: aggregateEpoch},
		{Responses: map[string]interface{}{"main": map[string]interface{}{"effort": map[string]interface{}{"x": 1}}}, SubmittedAt: aggregateEpoch},
		mainEntry(1, map[string]interface{}{"effort": 5.0}),
	}, AggregateOptions{})

	assert.Equal(t, 3, result.TotalEntries)
	assert.InDelta(t, 5.0, *result.FieldAnalytics["effort"].Value, 1e-9)
	assert.Positive(t, result.Warnings)
}

func TestAggregateFormDoesNotReorderInput(t *testing.T) {
	entries := []models.FormResponseEntry{
		mainEntry(2, map[string]interface{}{"effort": 1.0}),
		mainEntry(0, map[string]interface{}{"effort": 2.0}),
	}
	AggregateForm(analyticsTemplate(), entries, AggregateOptions{})

	assert.Equal(t, aggregateEpoch.AddDate(0, 0, 2), entries[0].SubmittedAt)
}

func TestSplitBatches(t *testing.T) {
	var entries []models.FormResponseEntry
	for _, day := range []int{0, 1, 6, 7, 35} {
		entries = append(entries, models.FormResponseEntry{SubmittedAt: aggregateEpoch.AddDate(0, 0, day)})
	}

	assert.Len(t, splitBatches(entries, models.BatchHalves), 2)
	assert.Len(t, splitBatches(entries, models.BatchDay), 5)
	// 2026-03-02 is a Monday: days 0,1,6 share a week.
	weeks := splitBatches(entries, models.BatchWeek)
	require.Len(t, weeks, 3)
	assert.Len(t, weeks[0], 3)
	assert.Len(t, splitBatches(entries, models.BatchMonth), 2)
	assert.Nil(t, splitBatches(nil, models.BatchDay))
}

func TestRelativeChange(t *testing.T) {
	assert.Equal(t, 100.0, relativeChange(0, 3))
	assert.Equal(t, -100.0, relativeChange(0, -3))
	assert.Equal(t, 0.0, relativeChange(0, 0))
	assert.InDelta(t, -50.0, relativeChange(-2, -3), 1e-9)
}

func singleFieldTemplate(field models.Field) models.FormTemplate {
	return models.FormTemplate{
		ID:       "tpl-1",
		Version:  3,
		Sections: []models.Section{{ID: "main", Order: 1, Fields: []models.Field{field}}},
	}
}

func TestAggregateFormSumIgnoresMissingValues(t *testing.T) {
	tpl := singleFieldTemplate(models.Field{ID: "reps", Label: "Reps", Type: models.FieldNumber,
		Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsSum, Category: "volume"}})

	result := AggregateForm(tpl, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"reps": 2.0}),
		mainEntry(1, map[string]interface{}{}),
		mainEntry(2, map[string]interface{}{"reps": 6.0}),
	}, AggregateOptions{})

	reps := result.FieldAnalytics["reps"]
	require.NotNil(t, reps.Value)
	assert.InDelta(t, 8.0, *reps.Value, 1e-9)
	assert.Equal(t, 2, reps.SampleSize)
	assert.Equal(t, 0, result.Warnings)
	assert.InDelta(t, 8.0, *result.CategoryAnalytics["volume"].Average, 1e-9)
}

func TestAggregateFormIgnoresFieldsOutsideSchema(t *testing.T) {
	tpl := singleFieldTemplate(models.Field{ID: "reps", Label: "Reps", Type: models.FieldNumber,
		Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsAverage}})

	result := AggregateForm(tpl, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"reps": 4.0, "oldField": 9.0}),
		{ID: "legacy", Responses: map[string]interface{}{"removed": map[string]interface{}{"reps": 100.0}}, SubmittedAt: aggregateEpoch},
	}, AggregateOptions{})

	require.Len(t, result.FieldAnalytics, 1)
	assert.NotContains(t, result.FieldAnalytics, "oldField")
	assert.InDelta(t, 4.0, *result.FieldAnalytics["reps"].Value, 1e-9)
	assert.Equal(t, 1, result.FieldAnalytics["reps"].SampleSize)
	assert.Equal(t, 2, result.TotalEntries)
}

func TestAggregateFormPercentageOnlyCountsRecognisedAnswers(t *testing.T) {
	checkbox := singleFieldTemplate(models.Field{ID: "stretched", Label: "Stretched", Type: models.FieldCheckbox,
		Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsPercentage}})

	result := AggregateForm(checkbox, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"stretched": "maybe"}),
		mainEntry(1, map[string]interface{}{"stretched": false}),
		mainEntry(2, map[string]interface{}{"stretched": true}),
	}, AggregateOptions{})

	stretched := result.FieldAnalytics["stretched"]
	assert.InDelta(t, 50.0, *stretched.Value, 1e-9)
	assert.Equal(t, 2, stretched.SampleSize)
	assert.Equal(t, 1, result.Warnings)

	choice := singleFieldTemplate(models.Field{ID: "warmup", Label: "Warm-up", Type: models.FieldSelect,
		Options:   []string{"Never", "Always", "Yes"},
		Analytics: models.FieldAnalytics{Enabled: true, Type: models.AnalyticsPercentage}})

	result = AggregateForm(choice, []models.FormResponseEntry{
		mainEntry(0, map[string]interface{}{"warmup": "Never"}),
		mainEntry(1, map[string]interface{}{"warmup": "Always"}),
		mainEntry(2, map[string]interface{}{"warmup": "Yes"}),
		mainEntry(3, map[string]interface{}{"warmup": "Sometimes"}),
	}, AggregateOptions{})

	warmup := result.FieldAnalytics["warmup"]
	assert.InDelta(t, 33.3333, *warmup.Value, 1e-3)
	assert.Equal(t, 3, warmup.SampleSize)
	assert.Equal(t, 1, result.Warnings)
}
