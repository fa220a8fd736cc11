package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

type formTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.FormTemplate, error)
}

type formResponseRepository interface {
	Create(ctx context.Context, entry *models.FormResponseEntry) error
	List(ctx context.Context, filter models.FormResponseFilter) ([]models.FormResponseEntry, error)
}

// FormResponseService accepts and lists student submissions.
type FormResponseService struct {
	templates formTemplateReader
	responses formResponseRepository
	analytics analyticsInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewFormResponseService constructs the service.
func NewFormResponseService(templates formTemplateReader, responses formResponseRepository, analytics analyticsInvalidator, metrics *MetricsService, logger *zap.Logger) *FormResponseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormResponseService{templates: templates, responses: responses, analytics: analytics, metrics: metrics, logger: logger, now: time.Now}
}

// Submit validates responses against the template and stores the entry. Completion is always
// recomputed from the schema.
func (s *FormResponseService) Submit(ctx context.Context, actor *models.Identity, templateID string, req models.SubmitResponseRequest) (*models.FormResponseEntry, error) {
	if actor == nil || actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students submit forms")
	}
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !tpl.AcceptsSubmissions() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "template is not accepting submissions")
	}
	if req.Responses == nil {
		return nil, appErrors.Clone(appErrors.ErrMalformedRequest, "responses are required")
	}

	if problems := ValidateResponses(*tpl, req.Responses); len(problems) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}
	completion := ComputeCompletion(*tpl, req.Responses)
	if !completion.IsComplete && !tpl.AllowPartialSubmission {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(completion.Missing, ", "))
	}

	entry := &models.FormResponseEntry{
		ID:                   uuid.NewString(),
		TemplateID:           tpl.ID,
		TemplateVersion:      tpl.Version,
		StudentID:            actor.ID,
		Responses:            req.Responses,
		CompletionPercentage: completion.Percentage,
		IsComplete:           completion.IsComplete,
		SubmittedAt:          s.now().UTC(),
	}

	start := time.Now()
	if err := s.responses.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}
	s.metrics.ObserveDBQuery("form_response_create", time.Since(start))

	if s.analytics != nil {
		s.analytics.Invalidate(ctx, tpl.ID)
	}
	return entry, nil
}

// ListMine returns the actor's own entries, optionally for one template.
func (s *FormResponseService) ListMine(ctx context.Context, actor *models.Identity, templateID string) ([]models.FormResponseEntry, error) {
	entries, err := s.responses.List(ctx, models.FormResponseFilter{TemplateID: templateID, StudentID: actor.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return entries, nil
}

// ListForTemplate returns every entry of a template to its owner or an admin.
func (s *FormResponseService) ListForTemplate(ctx context.Context, actor *models.Identity, templateID string, filter models.FormResponseFilter) ([]models.FormResponseEntry, error) {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !actor.IsAdmin() && !(actor != nil && actor.Role == models.RoleCoach && tpl.OwnerID == actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view these submissions")
	}
	filter.TemplateID = templateID
	entries, err := s.responses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return entries, nil
}

// ComputeCompletion measures how many required fields the responses answer. Each instance of
// a repeatable section counts separately and an empty repeatable section counts as one
// unanswered instance. A template without required fields is always complete.
func ComputeCompletion(tpl models.FormTemplate, responses map[string]interface{}) models.Completion {
	var required, answered int
	var missing []string

	for _, section := range tpl.Sorted().Sections {
		var requiredFields []models.Field
		for _, field := range section.Fields {
			if field.Required() {
				requiredFields = append(requiredFields, field)
			}
		}
		if len(requiredFields) == 0 {
			continue
		}

		records, _ := sectionRecords(responses[section.ID])
		if len(records) == 0 {
			records = []map[string]interface{}{nil}
		}
		for i, record := range records {
			for _, field := range requiredFields {
				required++
				if answeredValue(record[field.ID]) {
					answered++
					continue
				}
				name := section.ID + "." + field.ID
				if section.IsRepeatable {
					name = fmt.Sprintf("%s[%d].%s", section.ID, i, field.ID)
				}
				missing = append(missing, name)
			}
		}
	}

	if required == 0 {
		return models.Completion{Percentage: 100, IsComplete: true}
	}
	pct := math.Round(float64(answered)/float64(required)*10000) / 100
	return models.Completion{Percentage: pct, IsComplete: answered == required, Missing: missing}
}

func answeredValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []interface{}:
		return len(val) > 0
	case []string:
		return len(val) > 0
	default:
		return true
	}
}

// ValidateResponses checks submitted values against the template's field definitions and
// returns one message per problem.
func ValidateResponses(tpl models.FormTemplate, responses map[string]interface{}) []string {
	sections := make(map[string]models.Section, len(tpl.Sections))
	for _, section := range tpl.Sections {
		sections[section.ID] = section
	}

	var problems []string
	for sectionID, raw := range responses {
		section, ok := sections[sectionID]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown section %q", sectionID))
			continue
		}
		if raw == nil {
			continue
		}

		var records []map[string]interface{}
		switch v := raw.(type) {
		case map[string]interface{}:
			if section.IsRepeatable {
				problems = append(problems, fmt.Sprintf("section %q expects a list of records", sectionID))
				continue
			}
			records = []map[string]interface{}{v}
		case []interface{}:
			if !section.IsRepeatable {
				problems = append(problems, fmt.Sprintf("section %q expects a single record", sectionID))
				continue
			}
			for i, item := range v {
				rec, ok := item.(map[string]interface{})
				if !ok {
					problems = append(problems, fmt.Sprintf("section %q instance %d is not a record", sectionID, i))
					continue
				}
				records = append(records, rec)
			}
		default:
			problems = append(problems, fmt.Sprintf("section %q has an unreadable shape", sectionID))
			continue
		}

		fields := make(map[string]models.Field, len(section.Fields))
		for _, field := range section.Fields {
			fields[field.ID] = field
		}
		for _, record := range records {
			for fieldID, value := range record {
				field, ok := fields[fieldID]
				if !ok {
					problems = append(problems, fmt.Sprintf("unknown field %q in section %q", fieldID, sectionID))
					continue
				}
				if value == nil {
					continue
				}
				if msg := fieldValueProblem(field, value); msg != "" {
					problems = append(problems, msg)
				}
			}
		}
	}
	sort.Strings(problems)
	return problems
}

func fieldValueProblem(field models.Field, value interface{}) string {
	switch field.Type {
	case models.FieldNumber, models.FieldRating:
		n, ok := value.(float64)
		if !ok {
			return fmt.Sprintf("field %q expects a number", field.ID)
		}
		if v := field.Validation; v != nil {
			if v.Min != nil && n < *v.Min {
				return fmt.Sprintf("field %q must be at least %v", field.ID, *v.Min)
			}
			if v.Max != nil && n > *v.Max {
				return fmt.Sprintf("field %q must be at most %v", field.ID, *v.Max)
			}
		}
	case models.FieldSelect, models.FieldRadio:
		s, ok := value.(string)
		if !ok || (s != "" && !containsOption(field.Options, s)) {
			return fmt.Sprintf("field %q expects one of its options", field.ID)
		}
	case models.FieldMultiselect:
		items, ok := value.([]interface{})
		if !ok {
			return fmt.Sprintf("field %q expects a list of options", field.ID)
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok || !containsOption(field.Options, s) {
				return fmt.Sprintf("field %q expects only its options", field.ID)
			}
		}
	case models.FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("field %q expects true or false", field.ID)
		}
	case models.FieldDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q expects a date", field.ID)
		}
		if s != "" {
			if _, err := time.Parse("2006-01-02", s); err != nil {
				if _, err := time.Parse(time.RFC3339, s); err != nil {
					return fmt.Sprintf("field %q expects a date", field.ID)
				}
			}
		}
	default:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q expects text", field.ID)
		}
		if v := field.Validation; v != nil {
			length := float64(len([]rune(s)))
			if v.Min != nil && length < *v.Min {
				return fmt.Sprintf("field %q must be at least %v characters", field.ID, *v.Min)
			}
			if v.Max != nil && length > *v.Max {
				return fmt.Sprintf("field %q must be at most %v characters", field.ID, *v.Max)
			}
		}
	}
	return ""
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
