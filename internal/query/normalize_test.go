package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

func TestNormalizeLooseRecords(t *testing.T) {
	raw := []byte(`[
		{"id": 7, "name": "STEM Award", "amount": 2500, "educationLevel": "Bachelor's",
		 "applicationEndDate": "2025-04-01", "eligibility": "<p>GPA above 3;</p><ul><li>Resident</li></ul>",
		 "community": "", "genderRequirement": null, "status": "", "createdAt": "2025-01-02T03:04:05Z"},
		{"_id": "abc", "title": "Arts Grant", "amount": "1,200", "education_level": "Master's",
		 "deadline": "2025-05-01", "gender": "Female", "status": "INACTIVE", "application_link": "https://example.org/apply"}
	]`)

	records, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "7", first.ID)
	assert.Equal(t, "2500", first.Amount)
	assert.Equal(t, "GPA above 3; Resident", first.Eligibility)
	assert.Nil(t, first.Community)
	assert.Equal(t, models.GenderAll, first.GenderRequirement)
	assert.Equal(t, models.ScholarshipStatusActive, first.Status)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), *first.CreatedAt)

	second := records[1]
	assert.Equal(t, "abc", second.ID)
	assert.Equal(t, "Arts Grant", second.Name)
	assert.Equal(t, 1200.0, ParseAmount(second.Amount))
	assert.Equal(t, models.EducationMasters, second.EducationLevel)
	assert.Equal(t, "2025-05-01", second.ApplicationEndDate)
	assert.Equal(t, models.GenderFemale, second.GenderRequirement)
	assert.Equal(t, models.ScholarshipStatusInactive, second.Status)
	require.NotNil(t, second.ApplicationLink)
	assert.Nil(t, second.CreatedAt)
}

func TestNormalizeRejectsNonCollections(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"id": 1}`, `"text"`, `[1, 2]`, `[null]`, `[{"id": 1}`} {
		_, err := Normalize([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", raw)
	}

	records, err := Normalize([]byte(` [] `))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNormalizeRecordFromYAMLValues(t *testing.T) {
	record := NormalizeRecord(map[string]any{
		"id":                 42,
		"name":               "Rural Fund",
		"amount":             1500.5,
		"applicationEndDate": time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		"community":          "Rural",
	})
	assert.Equal(t, "42", record.ID)
	assert.Equal(t, "1500.5", record.Amount)
	assert.Equal(t, "2025-06-30", record.ApplicationEndDate)
	require.NotNil(t, record.Community)
	assert.Equal(t, "Rural", *record.Community)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "plain text", PlainText("  plain text "))
	assert.Equal(t, "Science & Tech", PlainText("Science &amp; Tech"))
	assert.Equal(t, "Line one Line two", PlainText("<p>Line <b>one</b></p><p>Line<br>two</p>"))
}

func TestEligibilityItems(t *testing.T) {
	items := EligibilityItems("Must be enrolled; GPA above 3. Essay required.  ;")
	assert.Equal(t, []string{"Must be enrolled", "GPA above 3", "Essay required"}, items)
	assert.Empty(t, EligibilityItems(" ; . "))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"5000":         5000,
		" 12.50 ":      12.5,
		"$1,250":       1250,
		"not-a-number": 0,
		"":             0,
		"-40":          0,
		"NaN":          0,
		"Inf":          0,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseAmount(raw), "amount %q", raw)
	}
}

func TestParseDeadline(t *testing.T) {
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2025-04-01", "2025-04-01T23:59:00+07:00", "2025-04-01T08:00:00", "2025-04-01 08:00:00"} {
		got, ok := ParseDeadline(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "tomorrow", "04/01/2025", "2025-13-01"} {
		_, ok := ParseDeadline(raw)
		assert.False(t, ok, raw)
	}
}
