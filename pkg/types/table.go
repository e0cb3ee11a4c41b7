package types

import (
	"errors"
	"strings"
)

// FieldType is the declared type of a table column. Input coercion and
// response normalization always follow the declared type, never the type of
// whatever value a row currently holds.
type FieldType int

const (
	FieldInt FieldType = iota
	FieldString
	FieldEnum
	FieldDate
	FieldBool
	FieldJSON
)

// String returns the lower-case type name used in error messages.
func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "integer"
	case FieldString:
		return "string"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldBool:
		return "boolean"
	case FieldJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// Field describes a single column of a table.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool

	// Members lists the accepted labels of an enum field.
	Members []string

	// Default is the enum member a template row starts with. A nullable
	// field without one starts as nil.
	Default string
}

// HasMember reports whether label is one of the enum members.
func (f Field) HasMember(label string) bool {
	for _, m := range f.Members {
		if m == label {
			return true
		}
	}
	return false
}

// Schema is the static description of one table: its ordered fields and the
// name of its primary-key field.
type Schema struct {
	Name       string
	Fields     []Field
	PrimaryKey string

	// NaturalKey marks an operator-assigned primary key (country code) that
	// stays editable after the row is saved.
	NaturalKey bool
}

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// KeyField returns the primary-key field.
func (s Schema) KeyField() Field {
	f, _ := s.Field(s.PrimaryKey)
	return f
}

// Sentinel returns the primary-key value that marks an unsaved row.
func (s Schema) Sentinel() any {
	if s.KeyField().Type == FieldString {
		return ""
	}
	return int64(0)
}

// Route returns the hyphenated path segment used by the REST backend.
func (s Schema) Route() string {
	return RouteName(s.Name)
}

// RouteName converts a table identifier to its hyphenated route form.
func RouteName(table string) string {
	return strings.ReplaceAll(table, "_", "-")
}

// CanonicalName converts a route or table identifier to the underscore form.
func CanonicalName(table string) string {
	return strings.ReplaceAll(strings.TrimSpace(table), "-", "_")
}

// Schema lookup and row errors.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrFieldNotFound = errors.New("field not found")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrReadOnlyField = errors.New("field is read-only")
	ErrInvalidRow    = errors.New("invalid row data")
)

// Row editor errors.
var (
	ErrNotDirty     = errors.New("row has no pending changes")
	ErrNotDeletable = errors.New("unsaved row cannot be deleted")
	ErrSaveInFlight = errors.New("save already in flight for row")
	ErrRowNotFound  = errors.New("row not found")
	ErrRowSaved     = errors.New("row already exists on the server")
	ErrNoTable      = errors.New("no table selected")
)

// Borrowing errors.
var (
	ErrLoanClosed          = errors.New("borrowing is already returned")
	ErrInvalidCondition    = errors.New("invalid book condition")
	ErrReturnDateForbidden = errors.New("teacher borrowing takes no required return date")
	ErrInvalidReference    = errors.New("card, book and librarian must be positive ids")
)
