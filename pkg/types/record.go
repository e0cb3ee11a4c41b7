package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is one row of a table: field name to value. Values carry the Go
// type of the declared field type: int64 for integers, string for strings,
// enums and dates, bool for booleans, any decoded JSON for JSON fields, and
// nil for null.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's field names ordered by the schema, followed by
// any fields the schema does not declare in lexical order.
func (r Record) Keys(s Schema) []string {
	keys := make([]string, 0, len(r))
	for _, f := range s.Fields {
		if _, ok := r[f.Name]; ok {
			keys = append(keys, f.Name)
		}
	}
	var extra []string
	for k := range r {
		if _, ok := s.Field(k); !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Template returns a blank row for the table: the primary key holds the
// unsaved sentinel and every other field its empty value.
func (s Schema) Template(today time.Time) Record {
	rec := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		rec[f.Name] = f.emptyValue(today)
	}
	return rec
}

func (f Field) emptyValue(today time.Time) any {
	if f.Nullable && f.Default == "" {
		return nil
	}
	switch f.Type {
	case FieldInt:
		return int64(0)
	case FieldString:
		return ""
	case FieldEnum:
		return f.Default
	case FieldDate:
		return today.Format(DateLayout)
	case FieldBool:
		return false
	default:
		return nil
	}
}

// Key returns the primary-key value of rec.
func (s Schema) Key(rec Record) any {
	return rec[s.PrimaryKey]
}

// IsUnsaved reports whether rec's primary key is the unsaved sentinel.
// A missing or nil key counts as unsaved.
func (s Schema) IsUnsaved(rec Record) bool {
	return IsSentinel(rec[s.PrimaryKey])
}

// IsSentinel reports whether a primary-key value is the zero of its type.
func IsSentinel(key any) bool {
	switch v := key.(type) {
	case nil:
		return true
	case int64:
		return v == 0
	case string:
		return v == ""
	default:
		return false
	}
}

// KeyString formats a primary-key value as a path segment.
func KeyString(key any) string {
	switch v := key.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Parse converts operator text into the field's declared type. It does not
// handle the empty string; callers decide what empty input means.
func (f Field) Parse(raw string) (any, error) {
	switch f.Type {
	case FieldInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer, got %q", ErrInvalidValue, f.Name, raw)
		}
		return n, nil
	case FieldBool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, f.Name, raw)
	case FieldEnum:
		if !f.HasMember(raw) {
			return nil, fmt.Errorf("%w: %s expects one of %v, got %q", ErrInvalidValue, f.Name, f.Members, raw)
		}
		return raw, nil
	case FieldDate:
		if _, err := time.Parse(DateLayout, raw); err != nil {
			return nil, fmt.Errorf("%w: %s expects a YYYY-MM-DD date, got %q", ErrInvalidValue, f.Name, raw)
		}
		return raw, nil
	case FieldJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %s expects JSON: %v", ErrInvalidValue, f.Name, err)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// Normalize converts a value decoded from JSON into the field's declared Go
// type. Numbers may arrive as float64 or json.Number.
func (f Field) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case FieldInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: %s is not an integer: %v", ErrInvalidRow, f.Name, n)
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRow, f.Name, err)
			}
			return i, nil
		}
	case FieldString, FieldEnum, FieldDate:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldJSON:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidRow, f.Name, f.Type, v)
}

// Normalize converts every declared field of raw to its Go type. Fields the
// schema does not declare are kept as decoded.
func (s Schema) Normalize(raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for k, v := range raw {
		f, ok := s.Field(k)
		if !ok {
			rec[k] = v
			continue
		}
		nv, err := f.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		rec[k] = nv
	}
	return rec, nil
}
