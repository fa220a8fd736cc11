package models

import (
	"sort"
	"time"
)

// FieldType enumerates the widgets a template field may render as.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldRating      FieldType = "rating"
	FieldSelect      FieldType = "select"
	FieldRadio       FieldType = "radio"
	FieldMultiselect FieldType = "multiselect"
	FieldCheckbox    FieldType = "checkbox"
	FieldDate        FieldType = "date"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldRating, FieldSelect, FieldRadio, FieldMultiselect, FieldCheckbox, FieldDate:
		return true
	}
	return false
}

// Numeric reports whether the field collects numbers.
func (t FieldType) Numeric() bool {
	return t == FieldNumber || t == FieldRating
}

// Choice reports whether the field draws its values from Options.
func (t FieldType) Choice() bool {
	return t == FieldSelect || t == FieldRadio || t == FieldMultiselect
}

// AnalyticsType enumerates the per-field statistics.
type AnalyticsType string

const (
	AnalyticsAverage      AnalyticsType = "average"
	AnalyticsSum          AnalyticsType = "sum"
	AnalyticsPercentage   AnalyticsType = "percentage"
	AnalyticsDistribution AnalyticsType = "distribution"
	AnalyticsConsistency  AnalyticsType = "consistency"
)

// Valid reports whether t is a known analytics type.
func (t AnalyticsType) Valid() bool {
	switch t {
	case AnalyticsAverage, AnalyticsSum, AnalyticsPercentage, AnalyticsDistribution, AnalyticsConsistency:
		return true
	}
	return false
}

// Scalar reports whether the statistic is a single comparable number.
func (t AnalyticsType) Scalar() bool {
	return t != AnalyticsDistribution
}

// Polarity tells the trend classifier which direction counts as improvement.
type Polarity string

const (
	PolarityHigherIsBetter Polarity = "higher"
	PolarityLowerIsBetter  Polarity = "lower"
)

// FieldValidation holds submission rules for a field.
type FieldValidation struct {
	Required bool     `json:"required"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// FieldAnalytics configures how a field participates in analytics.
type FieldAnalytics struct {
	Enabled  bool          `json:"enabled"`
	Type     AnalyticsType `json:"type,omitempty"`
	Category string        `json:"category,omitempty"`
	Polarity Polarity      `json:"polarity,omitempty"`
}

// HigherIsBetter resolves the configured polarity, defaulting to higher.
func (a FieldAnalytics) HigherIsBetter() bool {
	return a.Polarity != PolarityLowerIsBetter
}

// Field is a single input inside a section.
type Field struct {
	ID         string           `json:"id" validate:"required"`
	Label      string           `json:"label" validate:"required"`
	Type       FieldType        `json:"type" validate:"required"`
	Order      int              `json:"order"`
	Options    []string         `json:"options,omitempty"`
	Validation *FieldValidation `json:"validation,omitempty"`
	Analytics  FieldAnalytics   `json:"analytics"`
}

// Required reports whether the field must be answered.
func (f Field) Required() bool {
	return f.Validation != nil && f.Validation.Required
}

// Section groups ordered fields; repeatable sections accept several instances.
type Section struct {
	ID           string  `json:"id" validate:"required"`
	Title        string  `json:"title"`
	Order        int     `json:"order"`
	Fields       []Field `json:"fields" validate:"dive"`
	IsRepeatable bool    `json:"isRepeatable"`
}

// FormTemplate is the admin/coach authored schema of a dynamic form.
type FormTemplate struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name" validate:"required"`
	Description            string    `json:"description,omitempty"`
	OwnerID                string    `json:"ownerId"`
	Sections               []Section `json:"sections" validate:"required,min=1,dive"`
	IsActive               bool      `json:"isActive"`
	IsArchived             bool      `json:"isArchived"`
	AllowPartialSubmission bool      `json:"allowPartialSubmission"`
	Version                int       `json:"version"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Sorted returns a copy with sections and their fields ordered by Order ascending.
// Ties keep their original relative position.
func (t FormTemplate) Sorted() FormTemplate {
	sections := make([]Section, len(t.Sections))
	for i, section := range t.Sections {
		fields := make([]Field, len(section.Fields))
		copy(fields, section.Fields)
		sort.SliceStable(fields, func(a, b int) bool { return fields[a].Order < fields[b].Order })
		section.Fields = fields
		sections[i] = section
	}
	sort.SliceStable(sections, func(a, b int) bool { return sections[a].Order < sections[b].Order })
	t.Sections = sections
	return t
}

// FieldRef locates a field together with its parent section.
type FieldRef struct {
	Section Section
	Field   Field
}

// Fields flattens the sorted template into processing order.
func (t FormTemplate) Fields() []FieldRef {
	sorted := t.Sorted()
	refs := make([]FieldRef, 0)
	for _, section := range sorted.Sections {
		for _, field := range section.Fields {
			refs = append(refs, FieldRef{Section: section, Field: field})
		}
	}
	return refs
}

// AcceptsSubmissions reports whether students may currently submit against the template.
func (t FormTemplate) AcceptsSubmissions() bool {
	return t.IsActive && !t.IsArchived
}

// FormTemplateFilter scopes template listings.
type FormTemplateFilter struct {
	OwnerID         string
	ActiveOnly      bool
	IncludeArchived bool
}
