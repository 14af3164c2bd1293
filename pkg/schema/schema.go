// Package schema declares the two input record families and renders the
// SQL that validates and coerces raw JSON records against them.
//
// Each record is read as an opaque JSON object; every declared field is
// extracted as text and then cast to its declared type with TRY_CAST, so a
// value that does not fit its type becomes NULL instead of failing the batch.
// Records with a missing required field are dropped by the ingest step.
package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
)

// Type is a primitive column type understood by the compute engine.
type Type string

// Supported primitive types.
const (
	Varchar Type = "VARCHAR"
	Integer Type = "INTEGER"
	BigInt  Type = "BIGINT"
	Double  Type = "DOUBLE"
)

func (t Type) valid() bool {
	switch t {
	case Varchar, Integer, BigInt, Double:
		return true
	}
	return false
}

// Column declares one field of a record family.
type Column struct {
	// Name is the column name after ingest.
	Name string
	// Source is the JSON key the value is read from. Defaults to Name.
	Source   string
	Type     Type
	Nullable bool
}

// SourceKey returns the JSON key the column is read from.
func (c Column) SourceKey() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Schema is an ordered list of column declarations.
type Schema struct {
	Name    string
	Columns []Column
}

// Validate checks the declaration itself: names are unique and types known.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s has no columns", s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema %s: column with empty name", s.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("schema %s: duplicate column %q", s.Name, c.Name)
		}
		seen[c.Name] = true
		if !c.Type.valid() {
			return fmt.Errorf("schema %s: column %q has unknown type %q", s.Name, c.Name, c.Type)
		}
	}
	return nil
}

// Column looks up a column by its post-ingest name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the post-ingest column names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Required returns the non-nullable columns.
func (s Schema) Required() []Column {
	var out []Column
	for _, c := range s.Columns {
		if !c.Nullable {
			out = append(out, c)
		}
	}
	return out
}

// RawSelectList renders the projection that pulls every declared field out
// of the JSON object column objCol as text.
func (s Schema) RawSelectList(objCol string) string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		path := `$."` + strings.ReplaceAll(c.SourceKey(), `"`, `\"`) + `"`
		parts[i] = fmt.Sprintf("json_extract_string(%s, %s) AS %s",
			adapter.QuoteIdent(objCol), adapter.QuoteString(path), adapter.QuoteIdent(c.Name))
	}
	return strings.Join(parts, ",\n\t")
}

// TypedSelectList renders the projection that casts raw text columns to
// their declared types. Mismatches become NULL.
func (s Schema) TypedSelectList() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		id := adapter.QuoteIdent(c.Name)
		if c.Type == Varchar {
			parts[i] = id
			continue
		}
		parts[i] = fmt.Sprintf("TRY_CAST(%s AS %s) AS %s", id, c.Type, id)
	}
	return strings.Join(parts, ",\n\t")
}

// CoercedCountExpr renders an aggregate counting the field values of a raw
// relation that would be nulled by TypedSelectList.
func (s Schema) CoercedCountExpr() string {
	var terms []string
	for _, c := range s.Columns {
		if c.Type == Varchar {
			continue
		}
		id := adapter.QuoteIdent(c.Name)
		terms = append(terms, fmt.Sprintf("count(*) FILTER (WHERE %s IS NOT NULL AND TRY_CAST(%s AS %s) IS NULL)", id, id, c.Type))
	}
	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, " + ")
}

// MissingRequiredPredicate renders a predicate that is true for typed rows
// lacking a required value. Blank strings count as missing.
func (s Schema) MissingRequiredPredicate() string {
	var terms []string
	for _, c := range s.Required() {
		id := adapter.QuoteIdent(c.Name)
		if c.Type == Varchar {
			terms = append(terms, fmt.Sprintf("(%s IS NULL OR trim(%s) = '')", id, id))
		} else {
			terms = append(terms, fmt.Sprintf("%s IS NULL", id))
		}
	}
	if len(terms) == 0 {
		return "false"
	}
	return strings.Join(terms, " OR ")
}
