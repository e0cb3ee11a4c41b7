package editor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/libpanel/internal/stubs"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

var today = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func mustSchema(t *testing.T, table string) types.Schema {
	t.Helper()
	s, err := types.Lookup(table)
	require.NoError(t, err)
	return s
}

func student(id int64) types.Record {
	return types.Record{
		"id": id, "name": "Ivan", "lastname": "Petrov", "surname": "Sergeevich",
		"age": int64(16), "faculty_curriculum": int64(1), "group": int64(3),
		"start_study_date": "2025-09-01", "status": types.StudentGraduated,
	}
}

func TestSaveDispatch(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T) *Row
		want    Outcome
		call    stubs.Call
	}{
		{
			name: "edited saved row is updated by identity",
			prepare: func(t *testing.T) *Row {
				r := New(mustSchema(t, types.TableStudent), student(7))
				require.NoError(t, r.Edit("name", "Pyotr"))
				return r
			},
			want: Updated,
			call: stubs.Call{Method: http.MethodPut, Path: "/student/7"},
		},
		{
			name: "blank row is created",
			prepare: func(t *testing.T) *Row {
				r := Blank(mustSchema(t, types.TableStudent), today)
				require.NoError(t, r.Edit("name", "Anna"))
				return r
			},
			want: Created,
			call: stubs.Call{Method: http.MethodPost, Path: "/student"},
		},
		{
			name: "marked row is deleted with hyphenated route",
			prepare: func(t *testing.T) *Row {
				r := New(mustSchema(t, types.TableTeacherCard), types.Record{"id": int64(3), "teacher": int64(2)})
				require.NoError(t, r.MarkForDeletion())
				return r
			},
			want: Deleted,
			call: stubs.Call{Method: http.MethodDelete, Path: "/teacher-card/3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := stubs.NewBackend()
			backend.Seed(types.TableStudent, student(7))
			backend.Seed(types.TableTeacherCard, types.Record{"id": int64(3), "teacher": int64(2)})
			r := tt.prepare(t)

			got, err := r.Save(context.Background(), backend)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			calls := backend.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.call.Method, calls[0].Method)
			assert.Equal(t, tt.call.Path, calls[0].Path)
			assert.False(t, r.Dirty())
			assert.False(t, r.MarkedForDeletion())
			assert.NoError(t, r.Err())
		})
	}
}

func TestSaveCreateAdoptsServerKey(t *testing.T) {
	backend := stubs.NewBackend()
	backend.Seed(types.TableStudent, student(41))
	r := Blank(mustSchema(t, types.TableStudent), today)
	require.NoError(t, r.Edit("name", "Anna"))

	_, err := r.Save(context.Background(), backend)
	require.NoError(t, err)

	assert.Equal(t, int64(42), r.Identity())
	assert.Equal(t, int64(42), r.Get("id"))
	assert.False(t, r.Unsaved())
	assert.True(t, r.Deletable())

	require.NoError(t, r.Edit("age", "17"))
	_, err = r.Save(context.Background(), backend)
	require.NoError(t, err)
	calls := backend.Calls()
	assert.Equal(t, "/student/42", calls[len(calls)-1].Path, "second save must update, not create again")
}

func TestSaveAdoptsServerCopy(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T) *Row
		want    Outcome
	}{
		{
			name: "update",
			prepare: func(t *testing.T) *Row {
				r := New(mustSchema(t, types.TableStudent), student(7))
				require.NoError(t, r.Edit("name", " Pyotr "))
				return r
			},
			want: Updated,
		},
		{
			name: "create",
			prepare: func(t *testing.T) *Row {
				r := Blank(mustSchema(t, types.TableStudent), today)
				require.NoError(t, r.Edit("name", " Anna "))
				require.NoError(t, r.Edit("age", "15"))
				return r
			},
			want: Created,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := stubs.NewBackend()
			backend.Seed(types.TableStudent, student(7))
			backend.RewriteWrites(func(row types.Record) {
				row["name"] = strings.TrimSpace(row["name"].(string))
				row["age"] = row["age"].(int64) + 1
			})
			r := tt.prepare(t)
			drafted := r.Values()

			got, err := r.Save(context.Background(), backend)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			stored := backend.Rows(types.TableStudent)
			server := stored[len(stored)-1]
			assert.Equal(t, server, r.Values())
			assert.NotEqual(t, drafted["name"], r.Get("name"))
			assert.Equal(t, drafted["age"].(int64)+1, r.Get("age"))
			assert.False(t, r.Dirty())
		})
	}
}

func TestNaturalKeyUsesIdentity(t *testing.T) {
	backend := stubs.NewBackend()
	backend.Seed(types.TableCountry, types.Record{"code": "RU", "name": "Russia"})
	schema := mustSchema(t, types.TableCountry)

	t.Run("new country posts even after the code was typed", func(t *testing.T) {
		r := Blank(schema, today)
		require.NoError(t, r.Edit("code", "KZ"))
		require.NoError(t, r.Edit("name", "Kazakhstan"))

		got, err := r.Save(context.Background(), backend)

		require.NoError(t, err)
		assert.Equal(t, Created, got)
		assert.Equal(t, "KZ", r.Identity())
	})

	t.Run("renaming a code updates under the old code", func(t *testing.T) {
		backend.ResetCalls()
		r := New(schema, types.Record{"code": "RU", "name": "Russia"})
		require.NoError(t, r.Edit("code", "RF"))

		_, err := r.Save(context.Background(), backend)

		require.NoError(t, err)
		assert.Equal(t, "/country/RU", backend.Calls()[0].Path)
		assert.Equal(t, "RF", r.Identity())

		require.NoError(t, r.MarkForDeletion())
		_, err = r.Save(context.Background(), backend)
		require.NoError(t, err)
		assert.Equal(t, "/country/RF", backend.Calls()[1].Path)
	})
}

func TestEdit(t *testing.T) {
	tests := []struct {
		name    string
		row     func(t *testing.T) *Row
		field   string
		raw     string
		want    any
		wantErr error
	}{
		{name: "integer coerced", row: savedStudent, field: "age", raw: "18", want: int64(18)},
		{name: "empty clears nullable field", row: savedStudent, field: "status", raw: "", want: nil},
		{name: "bad integer rejected", row: savedStudent, field: "age", raw: "old", wantErr: types.ErrInvalidValue},
		{name: "enum member checked", row: savedStudent, field: "status", raw: "Retired", wantErr: types.ErrInvalidValue},
		{name: "unknown field", row: savedStudent, field: "nickname", raw: "x", wantErr: types.ErrFieldNotFound},
		{name: "saved serial key is read-only", row: savedStudent, field: "id", raw: "9", wantErr: types.ErrReadOnlyField},
		{
			name:  "unsaved serial key may be set",
			row:   func(t *testing.T) *Row { return Blank(mustSchema(t, types.TableStudent), today) },
			field: "id", raw: "9", want: int64(9),
		},
		{
			name: "cleared natural key returns to sentinel",
			row: func(t *testing.T) *Row {
				return New(mustSchema(t, types.TableCountry), types.Record{"code": "RU", "name": "Russia"})
			},
			field: "code", raw: "", want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.row(t)
			gen := r.Generation()

			err := r.Edit(tt.field, tt.raw)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, r.Dirty())
				assert.Equal(t, gen, r.Generation())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Get(tt.field))
			assert.True(t, r.Dirty())
			assert.Equal(t, gen+1, r.Generation())
		})
	}
}

func savedStudent(t *testing.T) *Row {
	return New(mustSchema(t, types.TableStudent), student(7))
}

func TestRevertedEditStaysDirty(t *testing.T) {
	r := savedStudent(t)

	require.NoError(t, r.Edit("name", "Pyotr"))
	require.NoError(t, r.Edit("name", "Ivan"))

	assert.Equal(t, student(7), r.Values())
	assert.True(t, r.Dirty())
	assert.Equal(t, "dirty", r.Status())
}

func TestBlankRow(t *testing.T) {
	r := Blank(mustSchema(t, types.TableStudent), today)

	assert.True(t, r.Unsaved())
	assert.False(t, r.Deletable())
	assert.False(t, r.Dirty())
	assert.Equal(t, "new", r.Status())
	assert.ErrorIs(t, r.MarkForDeletion(), types.ErrNotDeletable)

	_, err := r.Save(context.Background(), stubs.NewBackend())
	assert.ErrorIs(t, err, types.ErrNotDirty)
}

func TestSaveFailureKeepsState(t *testing.T) {
	backend := stubs.NewBackend()
	backend.Seed(types.TableStudent, student(7))
	rejected := &types.RequestError{Status: http.StatusUnprocessableEntity, Class: types.Rejected, Body: "age out of range"}
	backend.FailNext(http.MethodPut, rejected)

	r := savedStudent(t)
	require.NoError(t, r.Edit("age", "200"))
	before := r.Values()

	_, err := r.Save(context.Background(), backend)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRejected)
	assert.True(t, r.Dirty())
	assert.Equal(t, before, r.Values())
	assert.Equal(t, int64(7), r.Identity())
	assert.ErrorIs(t, r.Err(), types.ErrRejected)

	// The same save retried succeeds and clears the error.
	got, err := r.Save(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, Updated, got)
	assert.NoError(t, r.Err())
}

func TestFailedDeleteStaysMarked(t *testing.T) {
	backend := stubs.NewBackend()
	backend.Seed(types.TableStudent, student(7))
	backend.FailNext(http.MethodDelete, errors.New("connection reset"))

	r := savedStudent(t)
	require.NoError(t, r.MarkForDeletion())

	_, err := r.Save(context.Background(), backend)

	require.Error(t, err)
	assert.True(t, r.MarkedForDeletion())
	assert.Len(t, backend.Rows(types.TableStudent), 1)
}

// hookBackend runs during a backend call, while the row is unlocked.
type hookBackend struct {
	Backend
	during func()
}

func (h hookBackend) Create(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	h.during()
	return h.Backend.Create(ctx, table, rec)
}

func (h hookBackend) Update(ctx context.Context, table string, key any, rec types.Record) (types.Record, error) {
	h.during()
	return h.Backend.Update(ctx, table, key, rec)
}

func TestSaveWhileInFlight(t *testing.T) {
	backend := stubs.NewBackend()
	r := Blank(mustSchema(t, types.TableStudent), today)
	require.NoError(t, r.Edit("name", "Anna"))

	var nested error
	hooked := hookBackend{Backend: backend, during: func() {
		_, nested = r.Save(context.Background(), backend)
		require.NoError(t, r.Edit("age", "12"))
	}}

	got, err := r.Save(context.Background(), hooked)

	require.NoError(t, err)
	assert.Equal(t, Created, got)
	assert.ErrorIs(t, nested, types.ErrSaveInFlight)
	require.Len(t, backend.Calls(), 1, "only one create may reach the backend")

	// The stale response took the key but kept the newer edit.
	assert.Equal(t, int64(1), r.Identity())
	assert.Equal(t, int64(1), r.Get("id"))
	assert.Equal(t, int64(12), r.Get("age"))
	assert.True(t, r.Dirty())

	got, err = r.Save(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, Updated, got)
	assert.Equal(t, "/student/1", backend.Calls()[1].Path)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := savedStudent(t)
	require.NoError(t, r.Edit("age", "17"))
	r.err = errors.New("PUT /student/7: rejected (status 422)")

	restored, err := Restore(r.Snapshot())

	require.NoError(t, err)
	assert.Equal(t, r.Values(), restored.Values())
	assert.Equal(t, int64(7), restored.Identity())
	assert.True(t, restored.Dirty())
	assert.Equal(t, r.Generation(), restored.Generation())
	assert.EqualError(t, restored.Err(), "PUT /student/7: rejected (status 422)")
}

func TestRestoreJSONNumbers(t *testing.T) {
	s := Snapshot{
		Table:    types.TableStudent,
		Draft:    types.Record{"id": float64(0), "name": "Anna", "age": float64(12)},
		Identity: nil,
		Dirty:    true,
	}

	r, err := Restore(s)

	require.NoError(t, err)
	assert.True(t, r.Unsaved())
	assert.Equal(t, int64(12), r.Get("age"))

	_, err = Restore(Snapshot{Table: "dragons"})
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestDraftFromImport(t *testing.T) {
	t.Run("serial key dropped", func(t *testing.T) {
		r := Draft(mustSchema(t, types.TableStudent), types.Record{"id": int64(7), "name": "Anna"}, today)

		assert.True(t, r.Unsaved())
		assert.True(t, r.Dirty())
		assert.Equal(t, int64(0), r.Get("id"))
		assert.Equal(t, "Anna", r.Get("name"))
		assert.Equal(t, "2026-10-16", r.Get("start_study_date"), "missing fields take template values")
	})

	t.Run("natural key kept", func(t *testing.T) {
		backend := stubs.NewBackend()
		r := Draft(mustSchema(t, types.TableCountry), types.Record{"code": "FR", "name": "France"}, today)

		got, err := r.Save(context.Background(), backend)

		require.NoError(t, err)
		assert.Equal(t, Created, got)
		assert.Equal(t, "FR", r.Identity())
	})
}
