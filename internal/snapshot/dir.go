package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// DirSource reads snapshots from <dir>/<region>.json and alerts from a
// single file path.
type DirSource struct {
	dir        string
	alertsFile string
}

// NewDirSource creates a DirSource. Neither path needs to exist yet.
func NewDirSource(dir, alertsFile string) *DirSource {
	return &DirSource{dir: dir, alertsFile: alertsFile}
}

// ReadSnapshot implements [Source].
func (d *DirSource) ReadSnapshot(_ context.Context, region string) ([]byte, error) {
	return readFile(filepath.Join(d.dir, region+".json"))
}

// ListSnapshots implements [Source].
func (d *DirSource) ListSnapshots(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory %s: %w", d.dir, err)
	}

	var regions []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		regions = append(regions, strings.TrimSuffix(e.Name(), ".json"))
	}
	return regions, nil
}

// ReadAlerts implements [Source].
func (d *DirSource) ReadAlerts(_ context.Context) ([]byte, error) {
	if d.alertsFile == "" {
		return nil, fmt.Errorf("alerts file not configured: %w", airspace.ErrNotFound)
	}
	return readFile(d.alertsFile)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, airspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
