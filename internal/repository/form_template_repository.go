package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

// CollectionFormTemplates holds form schema documents.
const CollectionFormTemplates = "form_templates"

// FormTemplateRepository persists form templates.
type FormTemplateRepository struct {
	templates *Collection
}

// NewFormTemplateRepository constructs the repository.
func NewFormTemplateRepository(store *DocumentStore) *FormTemplateRepository {
	return &FormTemplateRepository{templates: store.Collection(CollectionFormTemplates)}
}

// FindByID loads a template.
func (r *FormTemplateRepository) FindByID(ctx context.Context, id string) (*models.FormTemplate, error) {
	doc, err := r.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var tpl models.FormTemplate
	if err := doc.Decode(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// List returns templates matching the filter ordered by name.
func (r *FormTemplateRepository) List(ctx context.Context, filter models.FormTemplateFilter) ([]models.FormTemplate, error) {
	var filters []Filter
	if filter.OwnerID != "" {
		filters = append(filters, Where("ownerId", filter.OwnerID))
	}
	if filter.ActiveOnly {
		filters = append(filters, Where("isActive", true))
	}
	if !filter.IncludeArchived {
		filters = append(filters, Where("isArchived", false))
	}

	docs, err := r.templates.Query(ctx, Query{Filters: filters, OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list form templates: %w", err)
	}
	templates := make([]models.FormTemplate, 0, len(docs))
	for _, doc := range docs {
		var tpl models.FormTemplate
		if err := doc.Decode(&tpl); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

// Create stores a new template.
func (r *FormTemplateRepository) Create(ctx context.Context, tpl *models.FormTemplate) error {
	return r.templates.Create(ctx, tpl.ID, tpl)
}

// Update overwrites every top-level key of the stored template.
func (r *FormTemplateRepository) Update(ctx context.Context, tpl *models.FormTemplate) error {
	return r.templates.Update(ctx, tpl.ID, tpl)
}

// Delete removes a template.
func (r *FormTemplateRepository) Delete(ctx context.Context, id string) error {
	return r.templates.Delete(ctx, id)
}
