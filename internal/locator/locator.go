// Package locator finds an aircraft by callsign across every region
// snapshot.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// SnapshotReader is the subset of the snapshot store the locator needs.
type SnapshotReader interface {
	Regions(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, region string) (*airspace.Snapshot, error)
}

// Match is a located aircraft together with the snapshot it came from.
type Match struct {
	Region   string               `json:"region"`
	Snapshot *airspace.Snapshot   `json:"snapshot"`
	State    airspace.FlightState `json:"state"`
}

// Locator scans region snapshots for a callsign.
//
// When the same callsign appears in more than one region the
// lexicographically earliest region identifier wins, and within a
// region the first matching state in snapshot order wins. Regions come
// from the store already sorted, so the result is deterministic for a
// given set of files.
type Locator struct {
	snapshots SnapshotReader
	logger    *slog.Logger
}

// New creates a Locator over snapshots.
func New(snapshots SnapshotReader, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{snapshots: snapshots, logger: logger}
}

// FindByCallsign returns the first state whose normalized callsign
// matches. A miss is reported as an error wrapping
// [airspace.ErrNotFound]; storage corruption is returned as-is.
func (l *Locator) FindByCallsign(ctx context.Context, callsign string) (*Match, error) {
	want := airspace.NormalizeCallsign(callsign)
	if want == "" {
		return nil, fmt.Errorf("callsign %q: %w", callsign, airspace.ErrNotFound)
	}

	regions, err := l.snapshots.Regions(ctx)
	if err != nil {
		return nil, err
	}

	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := l.snapshots.Snapshot(ctx, region)
		if errors.Is(err, airspace.ErrNotFound) {
			// Replaced or removed between listing and reading.
			l.logger.Debug("region vanished during callsign scan", "region", region)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, st := range snap.States {
			if st.NormalizedCallsign() == want {
				return &Match{Region: region, Snapshot: snap, State: st}, nil
			}
		}
	}

	return nil, fmt.Errorf("callsign %q in any region: %w", want, airspace.ErrNotFound)
}
