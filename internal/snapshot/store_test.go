package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

const region1JSON = `{
  "region": "region1",
  "last_updated": "2025-01-01T12:00:00Z",
  "bounds": {"lamin": 45.8, "lamax": 47.8, "lomin": 5.9, "lomax": 10.5},
  "states": [
    {"icao24": "abc123", "callsign": "TEST123 ", "time_position": 1700000000, "last_contact": 1700000010,
     "longitude": 8.5, "latitude": 47.4, "baro_altitude": 250, "on_ground": false, "velocity": 300,
     "true_track": 90, "vertical_rate": 0, "geo_altitude": 260, "squawk": null, "spi": false, "position_source": 0}
  ]
}`

const alertsJSON = `{
  "last_updated": "2025-01-01T12:00:00Z",
  "alerts": [
    {"id": "a1", "region": "region1", "callsign": "TEST123", "type": "speed", "severity": "high",
     "message": "High velocity", "detected_at": "2025-01-01T12:00:00Z"}
  ]
}`

// testDir creates a snapshot directory containing the given files and
// returns a Store over it plus the directory path.
func testDir(t *testing.T, files map[string]string) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	return NewStore(NewDirSource(snapDir, filepath.Join(dir, "alerts.json")), nil), dir
}

func TestSnapshot_Found(t *testing.T) {
	s, _ := testDir(t, map[string]string{"snapshots/region1.json": region1JSON})

	snap, err := s.Snapshot(context.Background(), "region1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Region != "region1" {
		t.Errorf("Region = %q, want region1", snap.Region)
	}
	if len(snap.States) != 1 {
		t.Fatalf("len(States) = %d, want 1", len(snap.States))
	}
	if got := snap.States[0].NormalizedCallsign(); got != "TEST123" {
		t.Errorf("callsign = %q, want TEST123", got)
	}
	if snap.Bounds["lamin"] != 45.8 {
		t.Errorf("bounds.lamin = %v, want 45.8", snap.Bounds["lamin"])
	}
}

func TestSnapshot_MissingRegionIsNotFound(t *testing.T) {
	s, _ := testDir(t, map[string]string{"snapshots/region1.json": region1JSON})

	_, err := s.Snapshot(context.Background(), "region9")
	if !errors.Is(err, airspace.ErrNotFound) {
		t.Fatalf("Snapshot(region9) error = %v, want ErrNotFound", err)
	}
}

func TestSnapshot_InvalidRegionIsNotFound(t *testing.T) {
	s, _ := testDir(t, nil)

	for _, region := range []string{"", "../alerts", "a/b", "region 1"} {
		_, err := s.Snapshot(context.Background(), region)
		if !errors.Is(err, airspace.ErrNotFound) {
			t.Errorf("Snapshot(%q) error = %v, want ErrNotFound", region, err)
		}
	}
}

func TestSnapshot_CorruptData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"region": "region1", "states": [`},
		{"missing states", `{"region": "region1", "last_updated": "x"}`},
		{"state without icao24", `{"region": "region1", "last_updated": "x", "states": [{"callsign": "A"}]}`},
		{"velocity is a string", `{"region": "region1", "last_updated": "x", "states": [{"icao24": "a", "velocity": "fast"}]}`},
		{"top level array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := testDir(t, map[string]string{"snapshots/region1.json": tt.body})
			_, err := s.Snapshot(context.Background(), "region1")
			if !errors.Is(err, airspace.ErrCorruptData) {
				t.Fatalf("Snapshot error = %v, want ErrCorruptData", err)
			}
			if errors.Is(err, airspace.ErrNotFound) {
				t.Error("corrupt snapshot must not be reported as not found")
			}
		})
	}
}

func TestSnapshot_EmptyStatesIsValid(t *testing.T) {
	s, _ := testDir(t, map[string]string{
		"snapshots/quiet.json": `{"region": "quiet", "last_updated": "t", "bounds": {}, "states": []}`,
	})

	snap, err := s.Snapshot(context.Background(), "quiet")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.States == nil || len(snap.States) != 0 {
		t.Errorf("States = %v, want empty non-nil slice", snap.States)
	}
}

func TestRegions_SortedAndFiltered(t *testing.T) {
	s, _ := testDir(t, map[string]string{
		"snapshots/region2.json": region1JSON,
		"snapshots/region1.json": region1JSON,
		"snapshots/b_zone.json":  region1JSON,
		"snapshots/notes.txt":    "ignored",
	})

	got, err := s.Regions(context.Background())
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	want := []string{"b_zone", "region1", "region2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Regions() = %v, want %v", got, want)
	}
}

func TestRegions_MissingDirectoryIsEmpty(t *testing.T) {
	s := NewStore(NewDirSource(filepath.Join(t.TempDir(), "nope"), ""), nil)

	got, err := s.Regions(context.Background())
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Regions() = %v, want empty", got)
	}
}

func TestAlerts_AbsentFileIsEmptyDefault(t *testing.T) {
	s, _ := testDir(t, nil)

	got, err := s.Alerts(context.Background())
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if got.LastUpdated != "" {
		t.Errorf("LastUpdated = %q, want empty", got.LastUpdated)
	}
	if got.Alerts == nil || len(got.Alerts) != 0 {
		t.Errorf("Alerts = %v, want empty non-nil slice", got.Alerts)
	}
}

func TestAlerts_Present(t *testing.T) {
	s, _ := testDir(t, map[string]string{"alerts.json": alertsJSON})

	got, err := s.Alerts(context.Background())
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].ID != "a1" {
		t.Errorf("Alerts = %+v, want one alert a1", got.Alerts)
	}
}

func TestAlerts_Corrupt(t *testing.T) {
	s, _ := testDir(t, map[string]string{"alerts.json": `{"alerts": "nope"}`})

	_, err := s.Alerts(context.Background())
	if !errors.Is(err, airspace.ErrCorruptData) {
		t.Fatalf("Alerts error = %v, want ErrCorruptData", err)
	}
}
