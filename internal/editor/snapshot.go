package editor

import (
	"fmt"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Snapshot is the persisted form of a Row, stored between CLI invocations.
type Snapshot struct {
	Table      string       `json:"table"`
	Draft      types.Record `json:"draft"`
	Identity   any          `json:"identity"`
	Dirty      bool         `json:"dirty"`
	Deleted    bool         `json:"deleted"`
	Generation uint64       `json:"generation"`
	Err        string       `json:"err,omitempty"`
}

// Snapshot captures the row's full state.
func (r *Row) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Table:      r.schema.Name,
		Draft:      r.draft.Clone(),
		Identity:   r.identity,
		Dirty:      r.dirty,
		Deleted:    r.deleted,
		Generation: r.generation,
	}
	if r.err != nil {
		s.Err = r.err.Error()
	}
	return s
}

// Restore rebuilds a Row from a snapshot, converting JSON-decoded values
// back to their declared types. A restored row is never mid-save.
func Restore(s Snapshot) (*Row, error) {
	schema, err := types.Lookup(s.Table)
	if err != nil {
		return nil, fmt.Errorf("restore row: %w", err)
	}
	draft, err := schema.Normalize(s.Draft)
	if err != nil {
		return nil, fmt.Errorf("restore row: %w", err)
	}
	identity, err := schema.KeyField().Normalize(s.Identity)
	if err != nil {
		return nil, fmt.Errorf("restore row identity: %w", err)
	}
	if identity == nil {
		identity = schema.Sentinel()
	}

	r := &Row{
		schema:     schema,
		draft:      draft,
		identity:   identity,
		dirty:      s.Dirty,
		deleted:    s.Deleted,
		generation: s.Generation,
	}
	if s.Err != "" {
		r.err = restoredError(s.Err)
	}
	return r, nil
}

// restoredError carries the message of a failure recorded in an earlier
// invocation; its class is no longer known.
type restoredError string

func (e restoredError) Error() string { return string(e) }
