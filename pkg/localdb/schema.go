package localdb

import (
	"fmt"
	"regexp"
)

// ColumnType is the semantic type of a column. It decides both the SQLite
// affinity used in DDL and how values are encoded and decoded.
type ColumnType string

const (
	Text      ColumnType = "text"
	Integer   ColumnType = "integer"
	Real      ColumnType = "real"
	Boolean   ColumnType = "boolean"
	JSON      ColumnType = "json"
	Timestamp ColumnType = "timestamp"
)

func (t ColumnType) sqlType() string {
	switch t {
	case Integer, Boolean:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Column declares one non-key column.
type Column struct {
	Name string
	Type ColumnType
}

// Table declares a table. Every table also has an implicit "id TEXT PRIMARY KEY".
type Table struct {
	Name    string
	Columns []Column
}

func (t Table) column(name string) (Column, bool) {
	if name == "id" {
		return Column{Name: "id", Type: Text}, true
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (t Table) validate() error {
	if !identRe.MatchString(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	seen := map[string]bool{"id": true}
	for _, c := range t.Columns {
		if !identRe.MatchString(c.Name) {
			return fmt.Errorf("table %s: invalid column name %q", t.Name, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func (t Table) createSQL() string {
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY", t.Name)
	for _, c := range t.Columns {
		stmt += fmt.Sprintf(", %s %s", c.Name, c.Type.sqlType())
	}
	return stmt + ")"
}

// DefaultTables returns the fixed table set of the local store.
func DefaultTables() []Table {
	return []Table{
		{Name: "users", Columns: []Column{
			{"email", Text}, {"name", Text}, {"role", Text}, {"password_hash", Text}, {"created_at", Timestamp},
		}},
		{Name: "theme_settings", Columns: []Column{
			{"name", Text}, {"primary_color", Text}, {"secondary_color", Text}, {"font_family", Text},
			{"is_dark", Boolean}, {"active", Boolean},
		}},
		{Name: "image_assets", Columns: []Column{
			{"name", Text}, {"url", Text}, {"alt_text", Text}, {"category", Text},
		}},
		{Name: "services", Columns: []Column{
			{"name", Text}, {"description", Text}, {"price", Real}, {"currency", Text},
			{"duration_minutes", Integer}, {"features", JSON}, {"active", Boolean},
		}},
		{Name: "config", Columns: []Column{
			{"key", Text}, {"value", Text}, {"description", Text},
		}},
		{Name: "payment_providers", Columns: []Column{
			{"name", Text}, {"mode", Text}, {"settings", JSON}, {"enabled", Boolean},
		}},
		{Name: "payment_methods", Columns: []Column{
			{"provider_id", Text}, {"name", Text}, {"type", Text}, {"enabled", Boolean},
		}},
		{Name: "store_items", Columns: []Column{
			{"name", Text}, {"description", Text}, {"price", Real}, {"currency", Text},
			{"stock", Integer}, {"category", Text}, {"images", JSON},
		}},
		{Name: "gemstones", Columns: []Column{
			{"name", Text}, {"planet", Text}, {"color", Text}, {"benefits", JSON}, {"price_per_carat", Real},
		}},
		{Name: "featured_content", Columns: []Column{
			{"title", Text}, {"body", Text}, {"image_url", Text}, {"position", Integer}, {"published", Boolean},
		}},
		{Name: "report_formats", Columns: []Column{
			{"name", Text}, {"description", Text}, {"skin", Text}, {"is_default", Boolean}, {"active", Boolean},
		}},
		{Name: "readings", Columns: []Column{
			{"user_id", Text}, {"event_name", Text}, {"event_type", Text}, {"amount", Real}, {"currency", Text},
			{"payment_status", Text}, {"is_paid", Boolean}, {"report", JSON}, {"created_at", Timestamp},
		}},
		{Name: "transactions", Columns: []Column{
			{"user_id", Text}, {"reading_id", Text}, {"amount", Real}, {"currency", Text},
			{"status", Text}, {"provider", Text}, {"created_at", Timestamp},
		}},
		{Name: "feedback", Columns: []Column{
			{"user_id", Text}, {"reading_id", Text}, {"rating", Integer}, {"comment", Text}, {"created_at", Timestamp},
		}},
		{Name: "logs", Columns: []Column{
			{"level", Text}, {"message", Text}, {"context", JSON}, {"created_at", Timestamp},
		}},
		{Name: "mood_entries", Columns: []Column{
			{"user_id", Text}, {"mood", Text}, {"intensity", Integer}, {"note", Text}, {"created_at", Timestamp},
		}},
	}
}
