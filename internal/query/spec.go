// Package query implements the scholarship catalog query engine: predicate
// filtering, stable sorting and aggregate statistics over scholarship
// records. It performs no I/O and never mutates its input.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// ErrInvalidInput reports a structurally invalid call, never bad record data.
var ErrInvalidInput = errors.New("query: invalid input")

// DefaultMaxAmount is the default amount slider ceiling shown to clients.
const DefaultMaxAmount = 100000.0

// SortKey names the field results are ordered by.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByAmount    SortKey = "amount"
	SortByDeadline  SortKey = "deadline"
	SortByCreatedAt SortKey = "createdAt"
)

// SortOrder is a sort direction. The empty value selects the key's default.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// defaultOrders is the single direction table used by every caller.
var defaultOrders = map[SortKey]SortOrder{
	SortByName:      Ascending,
	SortByAmount:    Descending,
	SortByDeadline:  Ascending,
	SortByCreatedAt: Descending,
}

// DefaultOrder returns the direction used for key when none is requested.
func DefaultOrder(key SortKey) SortOrder {
	if order, ok := defaultOrders[key]; ok {
		return order
	}
	return Ascending
}

// AmountRange bounds the parsed amount, inclusive. Nil bounds take defaults.
type AmountRange struct {
	Min *float64
	Max *float64
}

// DeadlineRange bounds the deadline by calendar day, inclusive.
type DeadlineRange struct {
	From *time.Time
	To   *time.Time
}

// Active reports whether either bound is set.
func (r DeadlineRange) Active() bool {
	return r.From != nil || r.To != nil
}

// Spec is one complete filter and sort request.
type Spec struct {
	Search         string
	EducationLevel string
	Amount         AmountRange
	Deadline       DeadlineRange
	Communities    []string
	Gender         string
	SortBy         SortKey
	Order          SortOrder
}

// DefaultSpec returns the identity filter with the default sort.
func DefaultSpec() Spec {
	return Spec{}
}

// Validate rejects unknown sort keys and directions.
func (s Spec) Validate() error {
	if s.SortBy != "" {
		if _, ok := defaultOrders[s.SortBy]; !ok {
			return fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, s.SortBy)
		}
	}
	switch s.Order {
	case "", Ascending, Descending:
	default:
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidInput, s.Order)
	}
	return nil
}

// ParseSortKey maps user supplied sort names onto a SortKey.
func ParseSortKey(raw string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "name", "title":
		return SortByName, nil
	case "amount":
		return SortByAmount, nil
	case "deadline", "applicationenddate", "application_end_date":
		return SortByDeadline, nil
	case "createdat", "created_at", "date", "dateadded":
		return SortByCreatedAt, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, raw)
	}
}

// ParseSortOrder maps user supplied directions onto a SortOrder.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", ErrInvalidInput, raw)
	}
}

// FromCatalogQuery builds a Spec from its serialisable form. Communities may
// be repeated or comma separated.
func FromCatalogQuery(q models.CatalogQuery) (Spec, error) {
	spec := Spec{
		Search:         q.Search,
		EducationLevel: q.EducationLevel,
		Gender:         q.Gender,
		Amount:         AmountRange{Min: q.MinAmount, Max: q.MaxAmount},
	}

	var err error
	if spec.SortBy, err = ParseSortKey(q.SortBy); err != nil {
		return Spec{}, err
	}
	if spec.Order, err = ParseSortOrder(q.Order); err != nil {
		return Spec{}, err
	}
	if spec.Deadline.From, err = parseBound("deadlineFrom", q.DeadlineFrom); err != nil {
		return Spec{}, err
	}
	if spec.Deadline.To, err = parseBound("deadlineTo", q.DeadlineTo); err != nil {
		return Spec{}, err
	}

	for _, raw := range q.Communities {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				spec.Communities = append(spec.Communities, tag)
			}
		}
	}
	return spec, nil
}

func parseBound(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	day, ok := ParseDeadline(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD)", ErrInvalidInput, field)
	}
	return &day, nil
}
