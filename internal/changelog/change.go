// Package changelog turns entity mutations into human readable events_log
// entries and persists them off the request path.
package changelog

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action names with special rendering.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionRemove = "remove"
	ActionDelete = "delete"
)

// StatusActive marks a live events_log row.
const StatusActive = 1

// Field is one named value of a Snapshot.
type Field struct {
	Name  string
	Value any
}

// Snapshot is an ordered view of an entity used for diffing. Order controls
// the order of rendered changes.
type Snapshot []Field

// Lookup returns the value of the named field.
func (s Snapshot) Lookup(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FieldChange is a single modified field.
type FieldChange struct {
	Name string
	Old  any
	New  any
}

// Actor is the user who performed a change.
type Actor struct {
	ID    int64
	Name  string
	Email string
}

// Change describes a mutation to be recorded.
type Change struct {
	Action   string
	Entity   string
	Table    string
	RecordID int64
	Before   Snapshot
	After    Snapshot
	Skip     []string
	Actor    Actor
	Note     string
}

// Entry is an events_log row.
type Entry struct {
	Table     string    `json:"tbl"`
	RecordID  int64     `json:"fld"`
	Details   string    `json:"details"`
	EventDate time.Time `json:"event_date"`
	EventBy   int64     `json:"event_by"`
	Status    int       `json:"status"`
}

// NewEntry renders c into an events_log row stamped at now.
func NewEntry(c Change, now time.Time) Entry {
	return Entry{
		Table:     c.Table,
		RecordID:  c.RecordID,
		Details:   Details(c),
		EventDate: now.UTC(),
		EventBy:   c.Actor.ID,
		Status:    StatusActive,
	}
}

// ModifiedFields walks before in order and reports fields whose value in
// after differs. Fields named in skip, and fields missing on either side, are
// ignored.
func ModifiedFields(before, after Snapshot, skip []string) []FieldChange {
	skipped := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		skipped[name] = struct{}{}
	}
	var changes []FieldChange
	for _, f := range before {
		if _, ok := skipped[f.Name]; ok {
			continue
		}
		next, ok := after.Lookup(f.Name)
		if !ok {
			continue
		}
		if reflect.DeepEqual(f.Value, next) {
			continue
		}
		changes = append(changes, FieldChange{Name: f.Name, Old: f.Value, New: next})
	}
	return changes
}

// Details renders the events_log description of c.
func Details(c Change) string {
	who := fmt.Sprintf("[%s(%s)]", c.Actor.Name, c.Actor.Email)
	note := strings.TrimSpace(c.Note)

	if c.Action == ActionUpdate {
		if changes := ModifiedFields(c.Before, c.After, c.Skip); len(changes) > 0 {
			parts := make([]string, 0, len(changes))
			for _, ch := range changes {
				parts = append(parts, fmt.Sprintf("%s from %s to %s", ch.Name, formatValue(ch.Old), formatValue(ch.New)))
			}
			return strings.TrimSpace(fmt.Sprintf("%s updated by %s. Changes: %s. %s", c.Entity, who, strings.Join(parts, ", "), note))
		}
	}
	if c.Action == ActionRemove || c.Action == ActionDelete {
		return strings.TrimSpace(fmt.Sprintf("%s %sd by %s. %s", c.Entity, c.Action, who, note))
	}
	if note == "" {
		return fmt.Sprintf("%s %s triggered by %s. No values were modified", c.Entity, c.Action, who)
	}
	return fmt.Sprintf("%s %s triggered by %s. %s", c.Entity, c.Action, who, note)
}

func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null"
		}
		return formatValue(rv.Elem().Interface())
	}
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return "null"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// Humanize turns an enum constant such as SUPER_ADMIN into "Super Admin".
func Humanize(s string) string {
	caser := cases.Title(language.Und)
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}
