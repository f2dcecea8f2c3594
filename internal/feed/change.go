package feed

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync replaces events a slow subscriber could not buffer.
	// Handlers treat it like any other change and reload.
	ChangeResync ChangeType = "RESYNC"
)

// Change is a row-level mutation. Keys holds the row id and the columns
// that can be filtered on, as text.
type Change struct {
	Table       string            `json:"table"`
	Type        ChangeType        `json:"type"`
	Keys        map[string]string `json:"keys"`
	CommittedAt time.Time         `json:"committedAt"`
}

// Key returns a row key, or "" when the column was not published.
func (c Change) Key(column string) string {
	return c.Keys[column]
}

// Filter narrows a table feed to rows whose column equals a value.
type Filter struct {
	Column string
	Value  string
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ParseFilter accepts the "column=eq.value" form. An empty string yields a nil filter.
func ParseFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}
	column, rest, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("invalid filter %q: missing '='", expr)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("invalid filter %q: only eq is supported", expr)
	}
	if !identifier.MatchString(column) {
		return nil, fmt.Errorf("invalid filter %q: bad column", expr)
	}
	if value == "" {
		return nil, fmt.Errorf("invalid filter %q: empty value", expr)
	}
	return &Filter{Column: column, Value: value}, nil
}

// Eq builds the filter expression for column = value.
func Eq(column, value string) string {
	return column + "=eq." + value
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return Eq(f.Column, f.Value)
}

func (f *Filter) Matches(c Change) bool {
	if f == nil {
		return true
	}
	v, ok := c.Keys[f.Column]
	return ok && v == f.Value
}

// FeedKey identifies one upstream feed: the table, optionally narrowed by a filter.
func FeedKey(table string, f *Filter) string {
	if f == nil {
		return table
	}
	return table + ":" + f.String()
}

// feedKeys lists every feed a change belongs to.
func feedKeys(c Change) []string {
	keys := []string{c.Table}
	for column, value := range c.Keys {
		if value == "" {
			continue
		}
		keys = append(keys, FeedKey(c.Table, &Filter{Column: column, Value: value}))
	}
	return keys
}

func validTable(table string) bool {
	return identifier.MatchString(table)
}
