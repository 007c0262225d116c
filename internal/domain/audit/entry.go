package audit

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RecentLimit is how many entries the recent-activity panel shows.
	RecentLimit = 10
	// HistoryLimit is how many entries the full audit history shows.
	HistoryLimit = 50
)

type Action string

const (
	ActionCreate        Action = "CREATE"
	ActionEdit          Action = "EDIT"
	ActionDelete        Action = "DELETE"
	ActionStockIncrease Action = "STOCK_INCREASE"
	ActionStockDecrease Action = "STOCK_DECREASE"
	ActionCategoryMerge Action = "CATEGORY_MERGE"
)

// ActionAll matches every action in Filter.
const ActionAll Action = ""

// StockAction picks the audit action for a stock adjustment of the given sign.
func StockAction(delta int) Action {
	if delta > 0 {
		return ActionStockIncrease
	}
	return ActionStockDecrease
}

// Entry is one append-only audit log row.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	ActorEmail   string    `json:"actor_email"`
	Action       Action    `json:"action"`
	ProductName  string    `json:"product_name"`
	AffectedRows *int      `json:"affected_rows,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// MergeEntry builds the single entry written for a category merge.
func MergeEntry(actor, oldName, newName string, affected int) Entry {
	return Entry{
		ActorEmail:   actor,
		Action:       ActionCategoryMerge,
		ProductName:  oldName,
		AffectedRows: &affected,
		Detail:       fmt.Sprintf("%s -> %s", oldName, newName),
	}
}

// Filter narrows entries to one action (ActionAll keeps every action) and to
// rows whose visible text contains term, case-insensitively.
func Filter(entries []Entry, action Action, term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if action != ActionAll && e.Action != action {
			continue
		}
		if term != "" && !strings.Contains(e.searchText(), term) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (e Entry) searchText() string {
	return strings.ToLower(strings.Join([]string{
		e.Timestamp.Format(time.RFC3339),
		e.ActorEmail,
		string(e.Action),
		e.ProductName,
	}, " "))
}
