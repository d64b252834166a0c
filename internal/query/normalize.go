package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

var fieldAliases = map[string][]string{
	"id":                  {"id", "_id"},
	"name":                {"name", "title"},
	"description":         {"description"},
	"amount":              {"amount"},
	"educationLevel":      {"educationLevel", "education_level"},
	"applicationEndDate":  {"applicationEndDate", "application_end_date", "deadline"},
	"eligibility":         {"eligibility"},
	"community":           {"community"},
	"genderRequirement":   {"genderRequirement", "gender_requirement", "gender"},
	"status":              {"status"},
	"organizationLogo":    {"organizationLogo", "organization_logo"},
	"applicationLink":     {"applicationLink", "application_link"},
	"applicationFormPath": {"applicationFormPath", "application_form_path"},
	"createdAt":           {"createdAt", "created_at"},
}

// Normalize decodes a loosely typed JSON array of scholarship objects into
// strict records. Anything other than an array of objects is rejected.
func Normalize(raw []byte) ([]models.Scholarship, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of scholarships", ErrInvalidInput)
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var items []map[string]any
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decode scholarships: %v", ErrInvalidInput, err)
	}

	records := make([]models.Scholarship, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidInput, i)
		}
		records = append(records, NormalizeRecord(item))
	}
	return records, nil
}

// NormalizeRecord maps one decoded object onto a Scholarship. Blank optional
// fields become nil and rich text is reduced to plain text.
func NormalizeRecord(raw map[string]any) models.Scholarship {
	get := func(field string) string {
		for _, alias := range fieldAliases[field] {
			if v, ok := raw[alias]; ok {
				if s := stringify(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	record := models.Scholarship{
		ID:                  get("id"),
		Name:                get("name"),
		Description:         PlainText(get("description")),
		Amount:              get("amount"),
		EducationLevel:      get("educationLevel"),
		ApplicationEndDate:  get("applicationEndDate"),
		Eligibility:         PlainText(get("eligibility")),
		Community:           optional(get("community")),
		GenderRequirement:   get("genderRequirement"),
		Status:              models.ScholarshipStatus(strings.ToLower(get("status"))),
		OrganizationLogo:    optional(get("organizationLogo")),
		ApplicationLink:     optional(get("applicationLink")),
		ApplicationFormPath: optional(get("applicationFormPath")),
	}
	if record.GenderRequirement == "" {
		record.GenderRequirement = models.GenderAll
	}
	if record.Status == "" {
		record.Status = models.ScholarshipStatusActive
	}
	if created := get("createdAt"); created != "" {
		if t, ok := parseTimestamp(created); ok {
			record.CreatedAt = &t
		}
	}
	return record
}

// PlainText strips markup from rich text, collapsing whitespace. Input
// without tags is only trimmed.
func PlainText(value string) string {
	if !strings.ContainsAny(value, "<&") {
		return strings.TrimSpace(value)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return strings.TrimSpace(value)
	}
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, li, div").AppendHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// EligibilityItems splits eligibility text into individual statements.
func EligibilityItems(eligibility string) []string {
	parts := strings.FieldsFunc(eligibility, func(r rune) bool {
		return r == ';' || r == '.'
	})
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		if value.Equal(day(value)) {
			return value.Format("2006-01-02")
		}
		return value.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
