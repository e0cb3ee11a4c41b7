package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 10, 16, 15, 4, 5, 0, time.UTC)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantKey string
		wantErr error
	}{
		{name: "underscore form", table: "faculty_curriculum", wantKey: "id"},
		{name: "hyphenated route form", table: "faculty-curriculum", wantKey: "id"},
		{name: "country uses code", table: "country", wantKey: "code"},
		{name: "surrounding space is ignored", table: " student ", wantKey: "id"},
		{name: "unknown table", table: "members", wantErr: ErrTableNotFound},
		{name: "empty name", table: "", wantErr: ErrTableNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Lookup(tt.table)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, s.PrimaryKey)
		})
	}
}

func TestEveryStandardTableHasSchema(t *testing.T) {
	require.Len(t, StandardTableNames, 16)
	for _, name := range StandardTableNames {
		t.Run(name, func(t *testing.T) {
			s, err := Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name)
			_, ok := s.Field(s.PrimaryKey)
			assert.True(t, ok, "primary key must be a declared field")
		})
	}
}

func TestTemplateHasSentinelKey(t *testing.T) {
	for _, name := range StandardTableNames {
		t.Run(name, func(t *testing.T) {
			s, err := Lookup(name)
			require.NoError(t, err)

			rec := s.Template(today)
			assert.Equal(t, s.Sentinel(), rec[s.PrimaryKey])
			assert.True(t, s.IsUnsaved(rec))
			assert.ElementsMatch(t, s.FieldNames(), rec.Keys(s))
		})
	}
}

func TestTemplateValues(t *testing.T) {
	student, err := Lookup(TableStudent)
	require.NoError(t, err)
	assert.Equal(t, Record{
		"id":                 int64(0),
		"name":               "",
		"lastname":           "",
		"surname":            "",
		"age":                int64(0),
		"faculty_curriculum": int64(0),
		"group":              int64(0),
		"start_study_date":   "2026-10-16",
		"status":             StudentGraduated,
	}, student.Template(today))

	book, err := Lookup(TableBook)
	require.NoError(t, err)
	assert.Equal(t, false, book.Template(today)["student_access"])

	loans, err := Lookup(TableTeachersBorrowing)
	require.NoError(t, err)
	rec := loans.Template(today)
	assert.Equal(t, ConditionExcellent, rec["book_status_start"])
	assert.Nil(t, rec["book_status_finish"])
	assert.Nil(t, rec["return_date"])
	assert.Equal(t, "2026-10-16", rec["borrow_date"])

	country, err := Lookup(TableCountry)
	require.NoError(t, err)
	assert.Equal(t, Record{"code": "", "name": ""}, country.Template(today))
}

func TestRouteName(t *testing.T) {
	s, err := Lookup(TableTeacherCard)
	require.NoError(t, err)
	assert.Equal(t, "teacher-card", s.Route())
	assert.Equal(t, "students-borrowing", RouteName(TableStudentsBorrowing))
	assert.Equal(t, "author_book", CanonicalName("author-book"))
}
