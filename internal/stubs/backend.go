// Package stubs provides an in-memory implementation of the library REST
// backend for tests. The same Backend can be called directly through the Go
// interfaces the panel uses, or mounted as an http.Handler that speaks the
// backend's JSON contract.
package stubs

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Call records one backend request in the form the REST contract names it,
// e.g. {PUT /student/7}.
type Call struct {
	Method string
	Path   string
	Body   types.Record
}

// Backend is an in-memory table store keyed by canonical table name and
// primary key.
type Backend struct {
	mu       sync.Mutex
	tables   map[string]map[string]types.Record
	nextID   map[string]int64
	calls    []Call
	failures []failure
	rewrite  func(types.Record)
}

type failure struct {
	method string
	err    error
}

// NewBackend creates an empty stub backend knowing every standard table.
func NewBackend() *Backend {
	b := &Backend{
		tables: make(map[string]map[string]types.Record),
		nextID: make(map[string]int64),
	}
	for _, name := range types.StandardTableNames {
		b.tables[name] = make(map[string]types.Record)
		b.nextID[name] = 1
	}
	return b
}

// Seed stores rows as if they already existed on the server. Integer keys
// also advance the id sequence.
func (b *Backend) Seed(table string, recs ...types.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := types.Lookup(table)
	if err != nil {
		panic(fmt.Sprintf("stubs: seed unknown table %q", table))
	}
	for _, rec := range recs {
		norm, err := s.Normalize(rec)
		if err != nil {
			panic(fmt.Sprintf("stubs: seed %s: %v", table, err))
		}
		key := s.Key(norm)
		b.tables[s.Name][types.KeyString(key)] = norm
		if id, ok := key.(int64); ok && id >= b.nextID[s.Name] {
			b.nextID[s.Name] = id + 1
		}
	}
}

// Calls returns the requests received so far, oldest first.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// ResetCalls forgets the recorded requests.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// FailNext makes the next request with the given HTTP method fail with err.
// Failures queue up in call order.
func (b *Backend) FailNext(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, err: err})
}

// RewriteWrites installs fn to alter every created or updated row before it
// is stored and returned, the way a server fills defaults or trims input.
func (b *Backend) RewriteWrites(fn func(row types.Record)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rewrite = fn
}

// Rows returns a copy of a table's rows ordered by key.
func (b *Backend) Rows(table string) []types.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rowsLocked(types.CanonicalName(table))
}

func (b *Backend) rowsLocked(table string) []types.Record {
	rows := b.tables[table]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	out := make([]types.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, rows[k].Clone())
	}
	return out
}

// record logs a call and pops a queued failure for its method, if any.
// The caller must hold b.mu.
func (b *Backend) record(method, path string, body types.Record) error {
	b.calls = append(b.calls, Call{Method: method, Path: path, Body: body.Clone()})
	for i, f := range b.failures {
		if f.method == method {
			b.failures = append(b.failures[:i], b.failures[i+1:]...)
			return f.err
		}
	}
	return nil
}

func rejected(method, path string, status int, msg string) error {
	return &types.RequestError{Method: method, Path: path, Status: status, Class: types.Rejected, Body: msg}
}

func lookup(method, path, table string) (types.Schema, error) {
	s, err := types.Lookup(table)
	if err != nil {
		return types.Schema{}, rejected(method, path, http.StatusNotFound, "unknown table")
	}
	return s, nil
}

// ListTables returns the table identifiers in underscore form.
func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodGet, "/table", nil); err != nil {
		return nil, err
	}
	out := make([]string, len(types.StandardTableNames))
	copy(out, types.StandardTableNames)
	return out, nil
}

// List returns every row of a table.
func (b *Backend) List(ctx context.Context, table string) ([]types.Record, error) {
	path := "/" + types.RouteName(table)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodGet, path, nil); err != nil {
		return nil, err
	}
	s, err := lookup(http.MethodGet, path, table)
	if err != nil {
		return nil, err
	}
	return b.rowsLocked(s.Name), nil
}

// Create stores a new row. Integer keys are assigned from the table's
// sequence; natural keys must be supplied and unique.
func (b *Backend) Create(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	path := "/" + types.RouteName(table)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodPost, path, rec); err != nil {
		return nil, err
	}
	s, err := lookup(http.MethodPost, path, table)
	if err != nil {
		return nil, err
	}
	row := rec.Clone()
	if s.NaturalKey {
		key := types.KeyString(s.Key(row))
		if types.IsSentinel(s.Key(row)) {
			return nil, rejected(http.MethodPost, path, http.StatusUnprocessableEntity, s.PrimaryKey+" is required")
		}
		if _, exists := b.tables[s.Name][key]; exists {
			return nil, rejected(http.MethodPost, path, http.StatusConflict, "duplicate key")
		}
	} else {
		row[s.PrimaryKey] = b.nextID[s.Name]
		b.nextID[s.Name]++
	}
	if b.rewrite != nil {
		b.rewrite(row)
	}
	b.tables[s.Name][types.KeyString(s.Key(row))] = row
	return row.Clone(), nil
}

// Update replaces the row stored under key. A natural key may change; the
// row moves to its new key.
func (b *Backend) Update(ctx context.Context, table string, key any, rec types.Record) (types.Record, error) {
	path := "/" + types.RouteName(table) + "/" + types.KeyString(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodPut, path, rec); err != nil {
		return nil, err
	}
	s, err := lookup(http.MethodPut, path, table)
	if err != nil {
		return nil, err
	}
	old := types.KeyString(key)
	if _, ok := b.tables[s.Name][old]; !ok {
		return nil, rejected(http.MethodPut, path, http.StatusNotFound, "not found")
	}
	row := rec.Clone()
	if !s.NaturalKey {
		row[s.PrimaryKey] = key
	}
	if b.rewrite != nil {
		b.rewrite(row)
	}
	delete(b.tables[s.Name], old)
	b.tables[s.Name][types.KeyString(s.Key(row))] = row
	return row.Clone(), nil
}

// Delete removes the row stored under key.
func (b *Backend) Delete(ctx context.Context, table string, key any) error {
	_, err := b.remove(table, key)
	return err
}

func (b *Backend) remove(table string, key any) (types.Record, error) {
	path := "/" + types.RouteName(table) + "/" + types.KeyString(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodDelete, path, nil); err != nil {
		return nil, err
	}
	s, err := lookup(http.MethodDelete, path, table)
	if err != nil {
		return nil, err
	}
	k := types.KeyString(key)
	row, ok := b.tables[s.Name][k]
	if !ok {
		return nil, rejected(http.MethodDelete, path, http.StatusNotFound, "not found")
	}
	delete(b.tables[s.Name], k)
	return row, nil
}

// ListLibrarians returns the librarian table.
func (b *Backend) ListLibrarians(ctx context.Context) ([]types.Librarian, error) {
	rows, err := b.List(ctx, types.TableLibrarian)
	if err != nil {
		return nil, err
	}
	out := make([]types.Librarian, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Librarian{
			ID:       asInt(r["id"]),
			Name:     asString(r["name"]),
			Lastname: asString(r["lastname"]),
			Surname:  asString(r["surname"]),
			Age:      asInt(r["age"]),
		})
	}
	return out, nil
}

// ListBorrowings returns the enriched borrowing view for one card, joined
// with the owner, librarian and book names.
func (b *Backend) ListBorrowings(ctx context.Context, isTeacher bool, card int64) ([]types.BorrowingView, error) {
	path := fmt.Sprintf("/borrowing-readonly/%t/%d", isTeacher, card)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(http.MethodGet, path, nil); err != nil {
		return nil, err
	}

	loans, cardField, cards, owners, ownerField := types.TableStudentsBorrowing, "student_card",
		types.TableStudentCard, types.TableStudent, "student"
	if isTeacher {
		loans, cardField, cards, owners, ownerField = types.TableTeachersBorrowing, "teacher_card",
			types.TableTeacherCard, types.TableTeacher, "teacher"
	}

	var out []types.BorrowingView
	for _, r := range b.rowsLocked(loans) {
		if asInt(r[cardField]) != card {
			continue
		}
		v := types.BorrowingView{
			ID:           asInt(r["id"]),
			Card:         card,
			Librarian:    asInt(r["librarian"]),
			Book:         asInt(r["book"]),
			StatusStart:  asString(r["book_status_start"]),
			StatusFinish: asOptional(r["book_status_finish"]),
			BorrowDate:   asString(r["borrow_date"]),
			ReturnDate:   asOptional(r["return_date"]),
		}
		if !isTeacher {
			v.RequiredReturnDate = asOptional(r["required_return_date"])
		}
		if c, ok := b.tables[cards][types.KeyString(card)]; ok {
			if o, ok := b.tables[owners][types.KeyString(asInt(c[ownerField]))]; ok {
				v.Owner = fullName(o)
			}
		}
		if l, ok := b.tables[types.TableLibrarian][types.KeyString(v.Librarian)]; ok {
			v.LibrarianName = fullName(l)
		}
		if bk, ok := b.tables[types.TableBook][types.KeyString(v.Book)]; ok {
			v.BookTitle = asString(bk["title"])
		}
		out = append(out, v)
	}
	return out, nil
}

func fullName(r types.Record) string {
	return asString(r["lastname"]) + " " + asString(r["name"]) + " " + asString(r["surname"])
}

func asInt(v any) int64 {
	n, _ := v.(int64)
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asOptional(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
