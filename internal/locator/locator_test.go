package locator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/snapshot"
)

func snapshotJSON(region string, callsigns ...string) string {
	states := ""
	for i, cs := range callsigns {
		if i > 0 {
			states += ","
		}
		states += fmt.Sprintf(`{"icao24": "%s-%d", "callsign": %q, "latitude": 1, "longitude": 2}`, region, i, cs)
	}
	return fmt.Sprintf(`{"region": %q, "last_updated": "2025-01-01T00:00:00Z", "bounds": {}, "states": [%s]}`, region, states)
}

func testLocator(t *testing.T, files map[string]string) *Locator {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	store := snapshot.NewStore(snapshot.NewDirSource(dir, ""), nil)
	return New(store, nil)
}

func TestFindByCallsign_NormalizationIsIdempotent(t *testing.T) {
	l := testLocator(t, map[string]string{
		"region1.json": snapshotJSON("region1", "DAL42", "ABC123  "),
	})

	for _, q := range []string{"abc123", "ABC123", " ABC123 "} {
		m, err := l.FindByCallsign(context.Background(), q)
		if err != nil {
			t.Fatalf("FindByCallsign(%q): %v", q, err)
		}
		if m.Region != "region1" || m.State.ICAO24 != "region1-1" {
			t.Errorf("FindByCallsign(%q) = %s/%s, want region1/region1-1", q, m.Region, m.State.ICAO24)
		}
	}
}

func TestFindByCallsign_TieBreakEarliestRegion(t *testing.T) {
	l := testLocator(t, map[string]string{
		"region2.json": snapshotJSON("region2", "DUP1"),
		"region1.json": snapshotJSON("region1", "OTHER", "DUP1"),
	})

	for i := 0; i < 5; i++ {
		m, err := l.FindByCallsign(context.Background(), "dup1")
		if err != nil {
			t.Fatalf("FindByCallsign: %v", err)
		}
		if m.Region != "region1" {
			t.Fatalf("run %d: Region = %q, want region1", i, m.Region)
		}
		if m.Snapshot == nil || m.Snapshot.Region != "region1" {
			t.Errorf("Snapshot = %+v, want region1 snapshot", m.Snapshot)
		}
	}
}

func TestFindByCallsign_FirstStateWithinRegion(t *testing.T) {
	l := testLocator(t, map[string]string{
		"region1.json": snapshotJSON("region1", "TWIN", "TWIN"),
	})

	m, err := l.FindByCallsign(context.Background(), "TWIN")
	if err != nil {
		t.Fatalf("FindByCallsign: %v", err)
	}
	if m.State.ICAO24 != "region1-0" {
		t.Errorf("ICAO24 = %q, want region1-0", m.State.ICAO24)
	}
}

func TestFindByCallsign_NotFound(t *testing.T) {
	l := testLocator(t, map[string]string{
		"region1.json": snapshotJSON("region1", "AAA1"),
	})

	for _, q := range []string{"ZZZ9", "", "   "} {
		_, err := l.FindByCallsign(context.Background(), q)
		if !errors.Is(err, airspace.ErrNotFound) {
			t.Errorf("FindByCallsign(%q) error = %v, want ErrNotFound", q, err)
		}
	}
}

func TestFindByCallsign_NoRegions(t *testing.T) {
	l := testLocator(t, nil)

	_, err := l.FindByCallsign(context.Background(), "ABC123")
	if !errors.Is(err, airspace.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestFindByCallsign_CorruptSnapshotPropagates(t *testing.T) {
	l := testLocator(t, map[string]string{
		"region1.json": `{"region": "region1", "states": [`,
		"region2.json": snapshotJSON("region2", "ABC123"),
	})

	_, err := l.FindByCallsign(context.Background(), "ABC123")
	if !errors.Is(err, airspace.ErrCorruptData) {
		t.Fatalf("error = %v, want ErrCorruptData", err)
	}
}

// vanishingStore lists a region whose snapshot then disappears.
type vanishingStore struct{}

func (vanishingStore) Regions(context.Context) ([]string, error) {
	return []string{"gone", "region1"}, nil
}

func (vanishingStore) Snapshot(_ context.Context, region string) (*airspace.Snapshot, error) {
	if region == "gone" {
		return nil, fmt.Errorf("snapshot %q: %w", region, airspace.ErrNotFound)
	}
	cs := "ABC123"
	return &airspace.Snapshot{Region: region, States: []airspace.FlightState{{ICAO24: "x", Callsign: &cs}}}, nil
}

func TestFindByCallsign_SkipsVanishedRegion(t *testing.T) {
	l := New(vanishingStore{}, nil)

	m, err := l.FindByCallsign(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FindByCallsign: %v", err)
	}
	if m.Region != "region1" {
		t.Errorf("Region = %q, want region1", m.Region)
	}
}
