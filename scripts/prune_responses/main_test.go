package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

type fakeTemplates struct {
	templates []models.FormTemplate
	filters   []models.FormTemplateFilter
}

func (f *fakeTemplates) List(_ context.Context, filter models.FormTemplateFilter) ([]models.FormTemplate, error) {
	f.filters = append(f.filters, filter)
	return f.templates, nil
}

type fakeResponses struct {
	counts  map[string]int
	deleted []string
	failOn  string
}

func (f *fakeResponses) CountByTemplate(_ context.Context, templateID string) (int, error) {
	return f.counts[templateID], nil
}

func (f *fakeResponses) DeleteByFilter(_ context.Context, filter models.FormResponseFilter) (int64, error) {
	if filter.TemplateID == f.failOn {
		return 2, errors.New("statement timeout")
	}
	f.deleted = append(f.deleted, filter.TemplateID)
	n := f.counts[filter.TemplateID]
	f.counts[filter.TemplateID] = 0
	return int64(n), nil
}

type fakeInvalidator struct{ ids []string }

func (f *fakeInvalidator) Invalidate(_ context.Context, templateID string) {
	f.ids = append(f.ids, templateID)
}

var pruneNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPruner() (*pruner, *fakeResponses, *fakeInvalidator, *fakeTemplates) {
	templates := &fakeTemplates{templates: []models.FormTemplate{
		{ID: "t-live", Name: "Weekly check-in"},
		{ID: "t-old", Name: "Preseason", IsArchived: true, UpdatedAt: pruneNow.AddDate(0, -2, 0)},
		{ID: "t-new", Name: "Camp", IsArchived: true, UpdatedAt: pruneNow.Add(-time.Hour)},
	}}
	responses := &fakeResponses{counts: map[string]int{"t-live": 9, "t-old": 4, "t-new": 3}}
	invalidator := &fakeInvalidator{}
	p := &pruner{
		templates: templates,
		responses: responses,
		analytics: invalidator,
		logger:    zap.NewNop(),
		now:       func() time.Time { return pruneNow },
	}
	return p, responses, invalidator, templates
}

func TestPruneArchivedTemplates(t *testing.T) {
	p, responses, invalidator, templates := newPruner()

	report, err := p.run(context.Background(), pruneOptions{})
	require.NoError(t, err)
	assert.Equal(t, pruneReport{Templates: 2, Deleted: 7}, report)
	assert.Equal(t, []string{"t-old", "t-new"}, responses.deleted)
	assert.Equal(t, []string{"t-old", "t-new"}, invalidator.ids)
	assert.True(t, templates.filters[0].IncludeArchived)
	assert.Equal(t, 9, responses.counts["t-live"])

	report, err = p.run(context.Background(), pruneOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Deleted)
	assert.Len(t, invalidator.ids, 2)
}

func TestPruneHonoursAgeAndTemplateFilters(t *testing.T) {
	p, responses, _, _ := newPruner()

	report, err := p.run(context.Background(), pruneOptions{ArchivedBefore: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, pruneReport{Templates: 1, Deleted: 4}, report)
	assert.Equal(t, []string{"t-old"}, responses.deleted)

	p, responses, _, _ = newPruner()
	_, err = p.run(context.Background(), pruneOptions{TemplateID: "t-new"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-new"}, responses.deleted)
}

func TestPruneDryRun(t *testing.T) {
	p, responses, invalidator, _ := newPruner()

	report, err := p.run(context.Background(), pruneOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, pruneReport{Templates: 2, Deleted: 7}, report)
	assert.Empty(t, responses.deleted)
	assert.Empty(t, invalidator.ids)
}

func TestPruneStopsOnFailure(t *testing.T) {
	p, responses, _, _ := newPruner()
	responses.failOn = "t-old"

	report, err := p.run(context.Background(), pruneOptions{})
	require.Error(t, err)
	assert.Equal(t, int64(2), report.Deleted)
	assert.Equal(t, 0, report.Templates)
	assert.Empty(t, responses.deleted)
}
