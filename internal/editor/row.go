// Package editor holds the per-row edit state machine: a mutable draft of one
// table row, its dirty and deletion flags, and the save logic that turns the
// draft into a create, update or delete call against the backend.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Backend is the part of the REST backend a row needs to persist itself.
// Tables are named in underscore form; keys are int64 or string.
type Backend interface {
	Create(ctx context.Context, table string, rec types.Record) (types.Record, error)
	Update(ctx context.Context, table string, key any, rec types.Record) (types.Record, error)
	Delete(ctx context.Context, table string, key any) error
}

// Outcome is the backend action a successful Save performed.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
	Deleted
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "none"
	}
}

// Row is the working copy of one table row.
//
// The remembered identity is the primary key the server knows the row by.
// It is captured at load, refreshed after every successful save, and keys
// every update and delete, so editing a natural key (country code) never
// redirects the request to another row. A sentinel identity means the row
// has never been saved.
type Row struct {
	mu sync.Mutex

	schema   types.Schema
	draft    types.Record
	identity any

	dirty   bool
	deleted bool
	saving  bool

	// generation increases with every local change; a save response older
	// than the current generation must not overwrite the draft.
	generation uint64

	err error
}

// New wraps a row fetched from the server. The row starts clean.
func New(schema types.Schema, rec types.Record) *Row {
	return &Row{
		schema:   schema,
		draft:    rec.Clone(),
		identity: schema.Key(rec),
	}
}

// Blank returns an unsaved row holding the table's template values.
func Blank(schema types.Schema, today time.Time) *Row {
	rec := schema.Template(today)
	return &Row{
		schema:   schema,
		draft:    rec,
		identity: schema.Sentinel(),
	}
}

// Draft returns an unsaved, dirty row holding rec's values over the table
// template, as brought in by an import. Server-assigned keys are dropped so
// the save creates a new row.
func Draft(schema types.Schema, rec types.Record, today time.Time) *Row {
	draft := schema.Template(today)
	for k, v := range rec {
		draft[k] = v
	}
	if !schema.NaturalKey {
		draft[schema.PrimaryKey] = schema.Sentinel()
	}
	return &Row{
		schema:     schema,
		draft:      draft,
		identity:   schema.Sentinel(),
		dirty:      true,
		generation: 1,
	}
}

// Schema returns the table schema of the row.
func (r *Row) Schema() types.Schema {
	return r.schema
}

// Values returns a copy of the current draft.
func (r *Row) Values() types.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft.Clone()
}

// Get returns the draft value of one field.
func (r *Row) Get(field string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft[field]
}

// Identity returns the primary key the server knows the row by.
func (r *Row) Identity() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Dirty reports whether the row has changes that Save would send.
func (r *Row) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// MarkedForDeletion reports whether the next Save deletes the row.
func (r *Row) MarkedForDeletion() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

// Unsaved reports whether the row has never been stored on the server.
func (r *Row) Unsaved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.IsSentinel(r.identity)
}

// Deletable reports whether the delete action is available.
func (r *Row) Deletable() bool {
	return !r.Unsaved()
}

// Generation returns the row's change counter.
func (r *Row) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Err returns the failure of the last Save, or nil once a Save succeeds.
func (r *Row) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Fail records err on the row without touching its draft or flags.
func (r *Row) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Status returns a short label for listings: new, clean, dirty or deleted.
func (r *Row) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.deleted:
		return "deleted"
	case types.IsSentinel(r.identity):
		return "new"
	case r.dirty:
		return "dirty"
	default:
		return "clean"
	}
}

// Edit replaces one field of the draft with raw coerced to the field's
// declared type. Empty input clears the field to nil, or back to the
// sentinel for the primary key. A saved server-assigned key is read-only.
// Any accepted edit marks the row dirty, even if the value did not change.
func (r *Row) Edit(field, raw string) error {
	f, ok := r.schema.Field(field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", types.ErrFieldNotFound, r.schema.Name, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var val any
	if field == r.schema.PrimaryKey {
		if !r.schema.NaturalKey && !types.IsSentinel(r.draft[field]) {
			return fmt.Errorf("%w: %s.%s", types.ErrReadOnlyField, r.schema.Name, field)
		}
		if raw == "" {
			val = r.schema.Sentinel()
		}
	}
	if raw != "" {
		v, err := f.Parse(raw)
		if err != nil {
			return err
		}
		val = v
	}

	r.draft[field] = val
	r.dirty = true
	r.generation++
	return nil
}

// MarkForDeletion flags a saved row so the next Save deletes it.
// Returns ErrNotDeletable for a row that was never saved; such a row is
// discarded locally instead.
func (r *Row) MarkForDeletion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if types.IsSentinel(r.identity) {
		return types.ErrNotDeletable
	}
	r.deleted = true
	r.dirty = true
	r.generation++
	return nil
}

// Save sends the row to the backend. A row marked for deletion is deleted
// by its remembered identity; an unsaved row is created; anything else is
// updated by its remembered identity with the full draft as body. On
// success the draft becomes the server's copy and the flags reset. On
// failure nothing changes except Err, so the same Save can be retried.
func (r *Row) Save(ctx context.Context, b Backend) (Outcome, error) {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return 0, types.ErrNotDirty
	}
	if r.saving {
		r.mu.Unlock()
		return 0, types.ErrSaveInFlight
	}
	r.saving = true
	gen := r.generation
	body := r.draft.Clone()
	identity := r.identity
	deleted := r.deleted
	r.mu.Unlock()

	var (
		outcome Outcome
		resp    types.Record
		err     error
	)
	switch {
	case deleted:
		outcome = Deleted
		err = b.Delete(ctx, r.schema.Name, identity)
	case types.IsSentinel(identity):
		outcome = Created
		resp, err = b.Create(ctx, r.schema.Name, body)
	default:
		outcome = Updated
		resp, err = b.Update(ctx, r.schema.Name, identity, body)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saving = false

	if err != nil {
		r.err = err
		return 0, fmt.Errorf("%s %s row: %w", outcome.verb(), r.schema.Name, err)
	}
	r.err = nil

	if outcome == Deleted {
		r.dirty = false
		r.deleted = false
		return outcome, nil
	}

	key := r.schema.Key(resp)
	r.identity = key
	if r.generation != gen {
		// Local edits landed while the request was in flight. Keep them and
		// stay dirty; only take the key so a create is not sent twice.
		if types.IsSentinel(r.draft[r.schema.PrimaryKey]) {
			r.draft[r.schema.PrimaryKey] = key
		}
		return outcome, nil
	}

	r.draft = resp.Clone()
	r.dirty = false
	r.deleted = false
	return outcome, nil
}

func (o Outcome) verb() string {
	switch o {
	case Created:
		return "create"
	case Updated:
		return "update"
	default:
		return "delete"
	}
}
