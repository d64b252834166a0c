package query

import (
	"sort"
	"time"

	"golang.org/x/text/collate"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

type sortEntry struct {
	record models.Scholarship
	amount float64
	when   time.Time
	hasKey bool
}

// sortRecords orders items in place. Records without a usable deadline or
// creation time go last in either direction.
func (e *Engine) sortRecords(items []models.Scholarship, key SortKey, order SortOrder) {
	if len(items) < 2 {
		return
	}

	entries := make([]sortEntry, len(items))
	for i, item := range items {
		entry := sortEntry{record: item, hasKey: true}
		switch key {
		case SortByAmount:
			entry.amount = ParseAmount(item.Amount)
		case SortByDeadline:
			entry.when, entry.hasKey = ParseDeadline(item.ApplicationEndDate)
		case SortByCreatedAt:
			if item.CreatedAt != nil {
				entry.when = *item.CreatedAt
			} else {
				entry.hasKey = false
			}
		}
		entries[i] = entry
	}

	// Collators keep internal buffers, so each sort gets its own.
	var collator *collate.Collator
	if key == SortByName {
		collator = collate.New(e.locale, collate.IgnoreCase)
	}

	compare := func(a, b *sortEntry) int {
		switch key {
		case SortByName:
			return collator.CompareString(a.record.Name, b.record.Name)
		case SortByAmount:
			switch {
			case a.amount < b.amount:
				return -1
			case a.amount > b.amount:
				return 1
			}
			return 0
		default:
			return a.when.Compare(b.when)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.hasKey != b.hasKey {
			return a.hasKey
		}
		if !a.hasKey {
			return false
		}
		if order == Descending {
			return compare(b, a) < 0
		}
		return compare(a, b) < 0
	})

	for i := range entries {
		items[i] = entries[i].record
	}
}
