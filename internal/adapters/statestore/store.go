// Package statestore materializes per-county vote state at the playback
// cursor. The store replays county timelines out of the frame buffer to
// rebuild an absolute snapshot for any cursor position, then layers manual
// overrides on top. Replay is deterministic: the same cursor over the same
// buffered frames always produces the same states and the same fingerprint.
package statestore

import (
	"context"

	"github.com/okian/precinct/internal/domain/model"
)

// Series is the per-county frame timeline the store replays from.
type Series interface {
	// EntityAtOrBefore returns the latest update for a county at or before
	// the given simulation time, along with the timestamp of the frame it
	// came from.
	EntityAtOrBefore(ctx context.Context, fips string, t float64) (model.CountyUpdate, float64, bool)

	// EntityIDs returns the sorted ids of every county seen in the feed.
	EntityIDs(ctx context.Context) []string
}

// Store abstracts cursor-derived county state and manual override writes.
type Store interface {
	// ApplyUpToCursor rebuilds every county state from the series as of the
	// given cursor. Counties with no frame at or before the cursor reset to
	// a zeroed state; overridden counties keep their edited values.
	ApplyUpToCursor(ctx context.Context, cursor float64)

	// CountyStates returns a copy of all materialized county states.
	CountyStates(ctx context.Context) map[string]model.CountyState

	// County returns the materialized state for a single county.
	County(ctx context.Context, fips string) (model.CountyState, bool)

	// Baseline returns the scenario baseline keyed by county id.
	Baseline(ctx context.Context) map[string]model.BaselineCounty

	// SetManualOverride validates a partial edit, merges it into the county
	// state, and pins the county against subsequent replays. The merged
	// state is returned.
	SetManualOverride(ctx context.Context, fips string, patch model.OverridePatch) (model.CountyState, error)

	// ClearOverride unpins a county so the next replay rederives it from
	// the series. Reports whether an override was actually removed.
	ClearOverride(ctx context.Context, fips string) bool

	// Overridden returns the sorted ids of counties with an active override.
	Overridden(ctx context.Context) []string

	// UnknownCounties returns the sorted ids of counties seen in the feed
	// but absent from the baseline.
	UnknownCounties(ctx context.Context) []string

	// Fingerprint returns a digest of the materialized states. Identical
	// states produce identical fingerprints regardless of how they were
	// reached.
	Fingerprint(ctx context.Context) uint64

	// Count returns the number of materialized county states.
	Count(ctx context.Context) int

	// Close marks the store as closed. Further writes are rejected.
	Close() error
}
