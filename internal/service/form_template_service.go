package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type formTemplateRepository interface {
	FindByID(ctx context.Context, id string) (*models.FormTemplate, error)
	List(ctx context.Context, filter models.FormTemplateFilter) ([]models.FormTemplate, error)
	Create(ctx context.Context, tpl *models.FormTemplate) error
	Update(ctx context.Context, tpl *models.FormTemplate) error
	Delete(ctx context.Context, id string) error
}

type submissionCounter interface {
	CountByTemplate(ctx context.Context, templateID string) (int, error)
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type analyticsInvalidator interface {
	Invalidate(ctx context.Context, templateID string)
}

// analyticsCompatibility lists the field types each statistic can read.
var analyticsCompatibility = map[models.AnalyticsType][]models.FieldType{
	models.AnalyticsAverage:      {models.FieldNumber, models.FieldRating},
	models.AnalyticsSum:          {models.FieldNumber, models.FieldRating},
	models.AnalyticsPercentage:   {models.FieldCheckbox, models.FieldSelect, models.FieldRadio, models.FieldMultiselect},
	models.AnalyticsDistribution: {models.FieldSelect, models.FieldRadio, models.FieldMultiselect, models.FieldCheckbox, models.FieldRating, models.FieldNumber, models.FieldText},
	models.AnalyticsConsistency:  {models.FieldSelect, models.FieldRadio, models.FieldMultiselect, models.FieldCheckbox, models.FieldRating, models.FieldNumber, models.FieldText},
}

// FormTemplateService manages dynamic form templates.
type FormTemplateService struct {
	repo      formTemplateRepository
	responses submissionCounter
	audit     auditRecorder
	analytics analyticsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFormTemplateService constructs the service. audit and analytics may be nil.
func NewFormTemplateService(repo formTemplateRepository, responses submissionCounter, audit auditRecorder, analytics analyticsInvalidator, validate *validator.Validate, logger *zap.Logger) *FormTemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormTemplateService{
		repo:      repo,
		responses: responses,
		audit:     audit,
		analytics: analytics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores a new template owned by actor at version 1.
func (s *FormTemplateService) Create(ctx context.Context, actor *models.Identity, tpl models.FormTemplate) (*models.FormTemplate, error) {
	if !canAuthorTemplates(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and coaches can author templates")
	}
	if err := s.validateTemplate(tpl); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tpl = tpl.Sorted()
	tpl.ID = uuid.NewString()
	tpl.OwnerID = actor.ID
	tpl.Version = 1
	tpl.IsArchived = false
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.repo.Create(ctx, &tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	s.record(ctx, actor, models.AuditActionTemplateCreate, tpl.ID, map[string]interface{}{"name": tpl.Name, "version": tpl.Version})
	return &tpl, nil
}

// Get returns a template in sorted order. Students and parents only see templates that
// currently accept submissions.
func (s *FormTemplateService) Get(ctx context.Context, actor *models.Identity, id string) (*models.FormTemplate, error) {
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAuthorTemplates(actor) && !tpl.AcceptsSubmissions() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	sorted := tpl.Sorted()
	return &sorted, nil
}

// List returns templates visible to actor.
func (s *FormTemplateService) List(ctx context.Context, actor *models.Identity, filter models.FormTemplateFilter) ([]models.FormTemplate, error) {
	switch {
	case actor.IsAdmin():
	case actor != nil && actor.Role == models.RoleCoach:
		filter.OwnerID = actor.ID
	default:
		filter = models.FormTemplateFilter{ActiveOnly: true}
	}

	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	for i := range templates {
		templates[i] = templates[i].Sorted()
	}
	return templates, nil
}

// Update replaces the template definition. A structural change bumps Version so entries
// recorded against the previous shape stay attributable.
func (s *FormTemplateService) Update(ctx context.Context, actor *models.Identity, id string, changes models.FormTemplate) (*models.FormTemplate, error) {
	current, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateTemplate(changes); err != nil {
		return nil, err
	}

	updated := changes.Sorted()
	updated.ID = current.ID
	updated.OwnerID = current.OwnerID
	updated.CreatedAt = current.CreatedAt
	updated.IsArchived = current.IsArchived
	updated.Version = current.Version
	if structurallyDifferent(*current, updated) {
		updated.Version++
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, s.storeError(err, "failed to update template")
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, models.AuditActionTemplateUpdate, id, map[string]interface{}{"version": updated.Version})
	return &updated, nil
}

// Archive retires a template; it stops accepting submissions but keeps its entries.
func (s *FormTemplateService) Archive(ctx context.Context, actor *models.Identity, id string) (*models.FormTemplate, error) {
	tpl, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	tpl.IsArchived = true
	tpl.IsActive = false
	tpl.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, s.storeError(err, "failed to archive template")
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, models.AuditActionTemplateUpdate, id, map[string]interface{}{"archived": true})
	return tpl, nil
}

// Delete removes a template that has never been submitted against.
func (s *FormTemplateService) Delete(ctx context.Context, actor *models.Identity, id string) error {
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return err
	}
	count, err := s.responses.CountByTemplate(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("template has %d submissions; archive it instead", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete template")
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, models.AuditActionTemplateDelete, id, nil)
	return nil
}

func (s *FormTemplateService) load(ctx context.Context, id string) (*models.FormTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load template")
	}
	return tpl, nil
}

func (s *FormTemplateService) loadOwned(ctx context.Context, actor *models.Identity, id string) (*models.FormTemplate, error) {
	if !canAuthorTemplates(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and coaches can manage templates")
	}
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && tpl.OwnerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "template belongs to another author")
	}
	return tpl, nil
}

func (s *FormTemplateService) storeError(err error, message string) error {
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *FormTemplateService) invalidate(ctx context.Context, templateID string) {
	if s.analytics != nil {
		s.analytics.Invalidate(ctx, templateID)
	}
}

func (s *FormTemplateService) record(ctx context.Context, actor *models.Identity, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var payload json.RawMessage
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			payload = raw
		}
	}
	userID := actor.ID
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "form_template",
		ResourceID: &resourceID,
		NewValues:  payload,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// validateTemplate runs struct tag validation followed by the schema rules tags cannot express.
func (s *FormTemplateService) validateTemplate(tpl models.FormTemplate) error {
	if err := s.validator.Struct(tpl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	var problems []string
	sectionIDs := make(map[string]struct{})
	fieldIDs := make(map[string]struct{})
	for _, section := range tpl.Sections {
		if _, dup := sectionIDs[section.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate section id %q", section.ID))
		}
		sectionIDs[section.ID] = struct{}{}

		for _, field := range section.Fields {
			if _, dup := fieldIDs[field.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate field id %q", field.ID))
			}
			fieldIDs[field.ID] = struct{}{}
			problems = append(problems, fieldProblems(field)...)
		}
	}

	if len(problems) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func fieldProblems(field models.Field) []string {
	var problems []string
	if !field.Type.Valid() {
		return []string{fmt.Sprintf("field %q has unknown type %q", field.ID, field.Type)}
	}
	if field.Type.Choice() {
		if len(field.Options) == 0 {
			problems = append(problems, fmt.Sprintf("field %q needs options", field.ID))
		}
		seen := make(map[string]struct{}, len(field.Options))
		for _, opt := range field.Options {
			if _, dup := seen[opt]; dup {
				problems = append(problems, fmt.Sprintf("field %q repeats option %q", field.ID, opt))
			}
			seen[opt] = struct{}{}
		}
	}
	if v := field.Validation; v != nil && v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		problems = append(problems, fmt.Sprintf("field %q has min greater than max", field.ID))
	}

	cfg := field.Analytics
	if !cfg.Enabled {
		return problems
	}
	allowed, ok := analyticsCompatibility[cfg.Type]
	if !ok {
		return append(problems, fmt.Sprintf("field %q has unknown analytics type %q", field.ID, cfg.Type))
	}
	compatible := false
	for _, t := range allowed {
		if t == field.Type {
			compatible = true
			break
		}
	}
	if !compatible {
		problems = append(problems, fmt.Sprintf("analytics type %q cannot read %s field %q", cfg.Type, field.Type, field.ID))
	}
	if cfg.Polarity != "" && cfg.Polarity != models.PolarityHigherIsBetter && cfg.Polarity != models.PolarityLowerIsBetter {
		problems = append(problems, fmt.Sprintf("field %q has unknown polarity %q", field.ID, cfg.Polarity))
	}
	return problems
}

// structurallyDifferent compares the ordered section/field trees of two templates.
func structurallyDifferent(a, b models.FormTemplate) bool {
	left, errA := json.Marshal(a.Sorted().Sections)
	right, errB := json.Marshal(b.Sorted().Sections)
	if errA != nil || errB != nil {
		return true
	}
	return string(left) != string(right)
}

func canAuthorTemplates(actor *models.Identity) bool {
	return actor != nil && (actor.Role == models.RoleAdmin || actor.Role == models.RoleCoach)
}
