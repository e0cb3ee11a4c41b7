// Package table manages the active table of the panel: which table is
// selected, the visible collection of draft rows, and the column set derived
// from them.
package table

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/libpanel/internal/editor"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Store is the backend surface the controller needs.
type Store interface {
	editor.Backend
	List(ctx context.Context, table string) ([]types.Record, error)
}

// State is the serializable form of a controller: the selected table and
// every visible row.
type State struct {
	Table string            `json:"table"`
	Rows  []editor.Snapshot `json:"rows"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for date defaults in blank rows.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns the visible rows of one selected table.
type Controller struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
	now    func() time.Time

	schema   types.Schema
	selected bool
	rows     []*editor.Row

	// fetch increases with every selection and reload so a fetch that
	// finishes after a newer one started is dropped.
	fetch uint64
}

// New creates a controller with no table selected.
func New(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select makes table active and loads its rows. Drafts of the previous
// table are discarded without saving. The table may be named in either
// underscore or hyphenated form.
func (c *Controller) Select(ctx context.Context, table string) error {
	s, err := types.Lookup(table)
	if err != nil {
		return fmt.Errorf("select %q: %w", table, err)
	}

	c.mu.Lock()
	if c.selected && c.schema.Name != s.Name {
		c.logger.Info("Switching table, discarding drafts",
			zap.String("from", c.schema.Name),
			zap.String("to", s.Name),
			zap.Int("rows", len(c.rows)),
		)
	}
	c.schema = s
	c.selected = true
	c.rows = nil
	c.mu.Unlock()

	return c.reload(ctx, false)
}

// Refresh re-fetches every row of the active table, replacing the visible
// collection including any unsaved drafts.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.reload(ctx, false)
}

// reload fetches the active table. With keepDrafts, rows that are dirty or
// never saved survive the reload in place of their server copy.
func (c *Controller) reload(ctx context.Context, keepDrafts bool) error {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		return types.ErrNoTable
	}
	c.fetch++
	fetch := c.fetch
	s := c.schema
	c.mu.Unlock()

	recs, err := c.store.List(ctx, s.Name)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fetch != c.fetch || c.schema.Name != s.Name {
		c.logger.Debug("Dropping stale table fetch", zap.String("table", s.Name))
		return nil
	}

	pending := make(map[string]*editor.Row)
	var unsaved []*editor.Row
	if keepDrafts {
		for _, r := range c.rows {
			switch {
			case r.Unsaved():
				unsaved = append(unsaved, r)
			case r.Dirty():
				pending[types.KeyString(r.Identity())] = r
			}
		}
	}

	rows := make([]*editor.Row, 0, len(recs)+len(pending)+len(unsaved))
	for _, rec := range recs {
		k := types.KeyString(s.Key(rec))
		if r, ok := pending[k]; ok {
			rows = append(rows, r)
			delete(pending, k)
			continue
		}
		rows = append(rows, editor.New(s, rec))
	}
	// Drafts whose server row is gone stay visible with an error.
	for _, r := range c.rows {
		if _, ok := pending[types.KeyString(r.Identity())]; ok {
			r.Fail(fmt.Errorf("%w: %s %v no longer exists on the server", types.ErrRowNotFound, s.Name, r.Identity()))
			rows = append(rows, r)
		}
	}
	c.rows = append(rows, unsaved...)

	c.logger.Debug("Loaded table", zap.String("table", s.Name), zap.Int("rows", len(recs)))
	return nil
}

// Table returns the active table name in underscore form, or "" if none.
func (c *Controller) Table() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return ""
	}
	return c.schema.Name
}

// Rows returns the visible rows in display order.
func (c *Controller) Rows() []*editor.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*editor.Row, len(c.rows))
	copy(out, c.rows)
	return out
}

// Row returns the visible row at index i.
func (c *Controller) Row(i int) (*editor.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowLocked(i)
}

func (c *Controller) rowLocked(i int) (*editor.Row, error) {
	if !c.selected {
		return nil, types.ErrNoTable
	}
	if i < 0 || i >= len(c.rows) {
		return nil, fmt.Errorf("%w: %d", types.ErrRowNotFound, i)
	}
	return c.rows[i], nil
}

// Columns returns the field names of the first visible row: schema order
// first, then any extra fields the server sent. An empty table has no
// columns.
func (c *Controller) Columns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rows) == 0 {
		return nil
	}
	return c.rows[0].Values().Keys(c.schema)
}

// Add appends a blank row built from the table template and returns its
// index.
func (c *Controller) Add() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return 0, types.ErrNoTable
	}
	c.rows = append(c.rows, editor.Blank(c.schema, c.now()))
	return len(c.rows) - 1, nil
}

// Import appends recs as dirty, unsaved drafts and returns how many were
// added. Nothing is sent until the rows are saved.
func (c *Controller) Import(recs []types.Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return 0, types.ErrNoTable
	}
	today := c.now()
	for _, rec := range recs {
		c.rows = append(c.rows, editor.Draft(c.schema, rec, today))
	}
	return len(recs), nil
}

// Export returns the draft values of every visible row.
func (c *Controller) Export() ([]types.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return nil, types.ErrNoTable
	}
	out := make([]types.Record, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r.Values())
	}
	return out, nil
}

// Schema returns the schema of the active table.
func (c *Controller) Schema() (types.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return types.Schema{}, types.ErrNoTable
	}
	return c.schema, nil
}

// Discard drops a never-saved row from the collection. Saved rows must be
// marked for deletion instead.
func (c *Controller) Discard(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.rowLocked(i)
	if err != nil {
		return err
	}
	if !r.Unsaved() {
		return fmt.Errorf("%w: row %d", types.ErrRowSaved, i)
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	return nil
}

// Save persists the row at index i. A deleted row leaves the collection and
// the table is re-fetched; other pending drafts survive that re-fetch. A
// failed re-fetch is logged and does not fail the delete.
func (c *Controller) Save(ctx context.Context, i int) (editor.Outcome, error) {
	r, err := c.Row(i)
	if err != nil {
		return 0, err
	}

	outcome, err := r.Save(ctx, c.store)
	if err != nil {
		c.logger.Warn("Save failed",
			zap.String("table", r.Schema().Name),
			zap.Any("identity", r.Identity()),
			zap.Stringer("class", types.ClassOf(err)),
			zap.Error(err),
		)
		return 0, err
	}
	c.logger.Info("Row saved",
		zap.String("table", r.Schema().Name),
		zap.Stringer("outcome", outcome),
		zap.Any("identity", r.Identity()),
	)

	if outcome != editor.Deleted {
		return outcome, nil
	}
	c.evict(r)
	if err := c.reload(ctx, true); err != nil {
		c.logger.Warn("Refresh after delete failed",
			zap.String("table", r.Schema().Name),
			zap.Error(err),
		)
	}
	return outcome, nil
}

// SaveAll saves every dirty row in display order and returns the first
// error. Rows after a failure are still attempted.
func (c *Controller) SaveAll(ctx context.Context) (int, error) {
	var (
		saved int
		first error
	)
	for _, r := range c.Rows() {
		if !r.Dirty() {
			continue
		}
		i := c.Index(r)
		if i < 0 {
			continue
		}
		if _, err := c.Save(ctx, i); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		saved++
	}
	return saved, first
}

// Index returns the position of r in the visible collection, or -1.
func (c *Controller) Index(r *editor.Row) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.rows {
		if v == r {
			return i
		}
	}
	return -1
}

func (c *Controller) evict(r *editor.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.rows {
		if v == r {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			return
		}
	}
}

// State captures the controller for persistence between invocations.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Rows: make([]editor.Snapshot, 0, len(c.rows))}
	if c.selected {
		st.Table = c.schema.Name
	}
	for _, r := range c.rows {
		st.Rows = append(st.Rows, r.Snapshot())
	}
	return st
}

// Load replaces the controller's table and rows with a saved state without
// contacting the backend.
func (c *Controller) Load(st State) error {
	if st.Table == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.selected = false
		c.schema = types.Schema{}
		c.rows = nil
		return nil
	}
	s, err := types.Lookup(st.Table)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	rows := make([]*editor.Row, 0, len(st.Rows))
	for _, snap := range st.Rows {
		r, err := editor.Restore(snap)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		rows = append(rows, r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = s
	c.selected = true
	c.rows = rows
	return nil
}
