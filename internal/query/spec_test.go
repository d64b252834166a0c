package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

func TestFromCatalogQuery(t *testing.T) {
	min := 100.0
	spec, err := FromCatalogQuery(models.CatalogQuery{
		Search:         "stem",
		EducationLevel: models.EducationPhD,
		MinAmount:      &min,
		DeadlineFrom:   "2025-03-01",
		Communities:    []string{"rural, veterans", " ", "first-gen"},
		Gender:         models.GenderOther,
		SortBy:         "Deadline",
		Order:          "DESC",
	})
	require.NoError(t, err)

	assert.Equal(t, "stem", spec.Search)
	assert.Equal(t, &min, spec.Amount.Min)
	assert.Nil(t, spec.Amount.Max)
	require.NotNil(t, spec.Deadline.From)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *spec.Deadline.From)
	assert.Nil(t, spec.Deadline.To)
	assert.Equal(t, []string{"rural", "veterans", "first-gen"}, spec.Communities)
	assert.Equal(t, SortByDeadline, spec.SortBy)
	assert.Equal(t, Descending, spec.Order)
}

func TestFromCatalogQueryRejectsBadInput(t *testing.T) {
	cases := []models.CatalogQuery{
		{SortBy: "random"},
		{Order: "up"},
		{DeadlineFrom: "someday"},
		{DeadlineTo: "31/12/2025"},
	}
	for _, q := range cases {
		_, err := FromCatalogQuery(q)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestDefaultOrder(t *testing.T) {
	assert.Equal(t, Ascending, DefaultOrder(SortByName))
	assert.Equal(t, Descending, DefaultOrder(SortByAmount))
	assert.Equal(t, Ascending, DefaultOrder(SortByDeadline))
	assert.Equal(t, Descending, DefaultOrder(SortByCreatedAt))
}
