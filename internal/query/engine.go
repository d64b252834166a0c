package query

import (
	"time"

	"golang.org/x/text/language"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

// UrgentWindowDays is the default look-ahead for urgent deadlines.
const UrgentWindowDays = 7

// Result is the filtered, ordered record set with stats over it.
type Result struct {
	Items []models.Scholarship `json:"items"`
	Stats Stats                `json:"stats"`
}

// Engine evaluates specs against record sets. It holds configuration only
// and is safe for concurrent use.
type Engine struct {
	now          func() time.Time
	locale       language.Tag
	urgentWindow int
	maxAmount    float64
	defaultSort  SortKey
	defaultOrder SortOrder
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for urgency calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocale sets the collation language for name ordering.
func WithLocale(tag language.Tag) Option {
	return func(e *Engine) {
		e.locale = tag
	}
}

// WithUrgentWindow sets how many days ahead count as urgent.
func WithUrgentWindow(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.urgentWindow = days
		}
	}
}

// WithMaxAmount sets the amount slider ceiling reported by MaxAmount. It is a
// presentation hint only; a spec without Max is never capped by it.
func WithMaxAmount(max float64) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxAmount = max
		}
	}
}

// WithDefaultSort replaces the sort applied when a spec names no key. An
// empty order keeps the key's default direction.
func WithDefaultSort(key SortKey, order SortOrder) Option {
	return func(e *Engine) {
		if _, ok := defaultOrders[key]; ok {
			e.defaultSort = key
			e.defaultOrder = order
		}
	}
}

// NewEngine constructs an Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:          time.Now,
		locale:       language.English,
		urgentWindow: UrgentWindowDays,
		maxAmount:    DefaultMaxAmount,
		defaultSort:  SortByCreatedAt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAmount returns the amount slider ceiling for clients.
func (e *Engine) MaxAmount() float64 {
	return e.maxAmount
}

// UrgentWindow returns the number of days ahead that count as urgent.
func (e *Engine) UrgentWindow() int {
	return e.urgentWindow
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// FilterAndSort returns the records matching every active predicate of spec,
// ordered by its sort key, together with stats over the matches.
func (e *Engine) FilterAndSort(records []models.Scholarship, spec Spec) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}

	match := e.compile(spec)
	items := make([]models.Scholarship, 0, len(records))
	for i := range records {
		if match(&records[i]) {
			items = append(items, records[i])
		}
	}

	key, order := e.resolveSort(spec)
	e.sortRecords(items, key, order)

	return Result{Items: items, Stats: e.ComputeStats(items)}, nil
}

// ComputeStats derives aggregate statistics using the engine clock.
func (e *Engine) ComputeStats(records []models.Scholarship) Stats {
	return computeStats(records, e.now(), e.urgentWindow)
}

func (e *Engine) resolveSort(spec Spec) (SortKey, SortOrder) {
	key := spec.SortBy
	order := spec.Order
	if key == "" {
		key = e.defaultSort
		if order == "" {
			order = e.defaultOrder
		}
	}
	if order == "" {
		order = DefaultOrder(key)
	}
	return key, order
}

var defaultEngine = NewEngine()

// FilterAndSort runs spec against records with the default engine.
func FilterAndSort(records []models.Scholarship, spec Spec) (Result, error) {
	return defaultEngine.FilterAndSort(records, spec)
}

// ComputeStats derives aggregate statistics as of the current time.
func ComputeStats(records []models.Scholarship) Stats {
	return defaultEngine.ComputeStats(records)
}

// ComputeStatsAt derives aggregate statistics as of now.
func ComputeStatsAt(records []models.Scholarship, now time.Time) Stats {
	return computeStats(records, now, UrgentWindowDays)
}
