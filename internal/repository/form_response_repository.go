package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

// CollectionFormResponses holds submitted form entries.
const CollectionFormResponses = "form_responses"

// FormResponseRepository persists form submissions.
type FormResponseRepository struct {
	responses *Collection
}

// NewFormResponseRepository constructs the repository.
func NewFormResponseRepository(store *DocumentStore) *FormResponseRepository {
	return &FormResponseRepository{responses: store.Collection(CollectionFormResponses)}
}

// Create stores a new entry.
func (r *FormResponseRepository) Create(ctx context.Context, entry *models.FormResponseEntry) error {
	return r.responses.Create(ctx, entry.ID, entry)
}

// List returns entries matching the filter in submission order.
func (r *FormResponseRepository) List(ctx context.Context, filter models.FormResponseFilter) ([]models.FormResponseEntry, error) {
	docs, err := r.responses.Query(ctx, Query{Filters: responseFilters(filter), OrderBy: "submittedAt"})
	if err != nil {
		return nil, fmt.Errorf("list form responses: %w", err)
	}
	entries := make([]models.FormResponseEntry, 0, len(docs))
	for _, doc := range docs {
		var entry models.FormResponseEntry
		if err := doc.Decode(&entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CountByTemplate reports how many entries reference a template.
func (r *FormResponseRepository) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	return r.responses.Count(ctx, Where("templateId", templateID))
}

// DeleteByFilter removes every matching entry in store-sized chunks.
func (r *FormResponseRepository) DeleteByFilter(ctx context.Context, filter models.FormResponseFilter) (int64, error) {
	docs, err := r.responses.Query(ctx, Query{Filters: responseFilters(filter)})
	if err != nil {
		return 0, fmt.Errorf("select form responses for delete: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return DeleteInChunks(ctx, r.responses, ids)
}

func responseFilters(filter models.FormResponseFilter) []Filter {
	var filters []Filter
	if filter.TemplateID != "" {
		filters = append(filters, Where("templateId", filter.TemplateID))
	}
	if filter.StudentID != "" {
		filters = append(filters, Where("studentId", filter.StudentID))
	}
	if filter.From != nil {
		filters = append(filters, Filter{Field: "submittedAt", Op: OpGte, Value: *filter.From})
	}
	if filter.To != nil {
		filters = append(filters, Filter{Field: "submittedAt", Op: OpLt, Value: *filter.To})
	}
	return filters
}
