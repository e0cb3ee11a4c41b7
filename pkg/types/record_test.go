package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldParse(t *testing.T) {
	status := Field{Name: "status", Type: FieldEnum, Members: []string{StudentGraduated, StudentMoved}}

	tests := []struct {
		name    string
		field   Field
		raw     string
		want    any
		wantErr error
	}{
		{name: "integer", field: Field{Name: "age", Type: FieldInt}, raw: "21", want: int64(21)},
		{name: "negative integer", field: Field{Name: "age", Type: FieldInt}, raw: "-3", want: int64(-3)},
		{name: "non numeric integer", field: Field{Name: "age", Type: FieldInt}, raw: "twenty", wantErr: ErrInvalidValue},
		{name: "bool true", field: Field{Name: "student_access", Type: FieldBool}, raw: "true", want: true},
		{name: "bool false", field: Field{Name: "student_access", Type: FieldBool}, raw: "false", want: false},
		{name: "bool literal only", field: Field{Name: "student_access", Type: FieldBool}, raw: "yes", wantErr: ErrInvalidValue},
		{name: "enum member", field: status, raw: StudentMoved, want: StudentMoved},
		{name: "enum non member", field: status, raw: "Promoted", wantErr: ErrInvalidValue},
		{name: "date", field: Field{Name: "issue_date", Type: FieldDate}, raw: "2024-02-29", want: "2024-02-29"},
		{name: "bad date", field: Field{Name: "issue_date", Type: FieldDate}, raw: "29.02.2024", wantErr: ErrInvalidValue},
		{name: "json object", field: Field{Name: "extra", Type: FieldJSON}, raw: `{"a":[1,2]}`, want: map[string]any{"a": []any{float64(1), float64(2)}}},
		{name: "json is never evaluated", field: Field{Name: "extra", Type: FieldJSON}, raw: `alert(1)`, wantErr: ErrInvalidValue},
		{name: "string passes through", field: Field{Name: "name", Type: FieldString}, raw: " Ann ", want: " Ann "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Parse(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchemaNormalize(t *testing.T) {
	s, err := Lookup(TableStudentsBorrowing)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12, "student_card": 3, "librarian": 1, "book": 5,
		"book_status_start": "Good", "book_status_finish": null,
		"borrow_date": "2026-10-01", "return_date": null,
		"required_return_date": "2026-11-01", "note": "extra"
	}`), &raw))

	rec, err := s.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec["id"])
	assert.Equal(t, int64(3), rec["student_card"])
	assert.Nil(t, rec["return_date"])
	assert.Equal(t, "extra", rec["note"])
	assert.Equal(t, []string{
		"id", "student_card", "librarian", "book", "book_status_start",
		"book_status_finish", "borrow_date", "return_date", "required_return_date", "note",
	}, rec.Keys(s))
}

func TestSchemaNormalizeRejectsWrongTypes(t *testing.T) {
	s, err := Lookup(TableBook)
	require.NoError(t, err)

	_, err = s.Normalize(map[string]any{"id": 1.5})
	assert.ErrorIs(t, err, ErrInvalidRow)

	_, err = s.Normalize(map[string]any{"student_access": "true"})
	assert.ErrorIs(t, err, ErrInvalidRow)

	rec, err := s.Normalize(map[string]any{"id": json.Number("7")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec["id"])
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel(nil))
	assert.True(t, IsSentinel(int64(0)))
	assert.True(t, IsSentinel(""))
	assert.False(t, IsSentinel(int64(7)))
	assert.False(t, IsSentinel("US"))
	assert.Equal(t, "7", KeyString(int64(7)))
	assert.Equal(t, "US", KeyString("US"))
}

func TestRequestErrorClass(t *testing.T) {
	err := &RequestError{Method: "PUT", Path: "/student/7", Status: 422, Class: Rejected, Body: "age out of range"}
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, Rejected, ClassOf(err))
	assert.Equal(t, "PUT /student/7: rejected (status 422): age out of range", err.Error())
	assert.Equal(t, ErrorClass(0), ClassOf(ErrNotDirty))
}
