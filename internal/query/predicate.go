package query

import (
	"math"
	"strings"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

type predicate func(*models.Scholarship) bool

// compile turns a spec into the conjunction of its active predicates.
func (e *Engine) compile(spec Spec) predicate {
	var preds []predicate
	if spec.Amount.Min != nil || spec.Amount.Max != nil {
		preds = append(preds, amountPredicate(spec.Amount))
	}

	if term := strings.ToLower(strings.TrimSpace(spec.Search)); term != "" {
		preds = append(preds, searchPredicate(term))
	}
	if level := strings.TrimSpace(spec.EducationLevel); !isEducationWildcard(level) {
		preds = append(preds, func(s *models.Scholarship) bool {
			return s.EducationLevel == level
		})
	}
	if spec.Deadline.Active() {
		preds = append(preds, deadlinePredicate(spec.Deadline))
	}
	if tags := lowerTags(spec.Communities); len(tags) > 0 {
		preds = append(preds, communityPredicate(tags))
	}
	if gender := strings.TrimSpace(spec.Gender); !isGenderWildcard(gender) {
		preds = append(preds, func(s *models.Scholarship) bool {
			record := strings.TrimSpace(s.GenderRequirement)
			return isGenderWildcard(record) || strings.EqualFold(record, gender)
		})
	}

	return func(s *models.Scholarship) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

func searchPredicate(term string) predicate {
	return func(s *models.Scholarship) bool {
		fields := [...]string{s.Name, s.Description, s.Eligibility, deref(s.Community)}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
}

// amountPredicate treats a nil bound as open: Min 0, Max unbounded.
func amountPredicate(r AmountRange) predicate {
	min, max := 0.0, math.Inf(1)
	if r.Min != nil {
		min = *r.Min
	}
	if r.Max != nil {
		max = *r.Max
	}
	return func(s *models.Scholarship) bool {
		amount := ParseAmount(s.Amount)
		return min <= amount && amount <= max
	}
}

// deadlinePredicate fails closed on unparseable deadlines.
func deadlinePredicate(r DeadlineRange) predicate {
	return func(s *models.Scholarship) bool {
		deadline, ok := ParseDeadline(s.ApplicationEndDate)
		if !ok {
			return false
		}
		if r.From != nil && deadline.Before(day(*r.From)) {
			return false
		}
		if r.To != nil && deadline.After(day(*r.To)) {
			return false
		}
		return true
	}
}

func communityPredicate(tags []string) predicate {
	return func(s *models.Scholarship) bool {
		community := strings.ToLower(strings.TrimSpace(deref(s.Community)))
		if community == "" {
			return false
		}
		for _, tag := range tags {
			if strings.Contains(community, tag) {
				return true
			}
		}
		return false
	}
}

func lowerTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func isEducationWildcard(level string) bool {
	return level == "" || strings.EqualFold(level, "all") || strings.EqualFold(level, models.EducationAllLevels)
}

func isGenderWildcard(gender string) bool {
	return gender == "" || strings.EqualFold(gender, models.GenderAll)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
