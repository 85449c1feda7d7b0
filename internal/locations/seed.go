package locations

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Locations []Location `yaml:"locations"`
}

// LoadSeed reads a YAML list of locations and saves each into store.
func LoadSeed(ctx context.Context, path string, store Store) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read location seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse location seed: %w", err)
	}
	for i := range f.Locations {
		loc := &f.Locations[i]
		if loc.ID.IsNil() || loc.Key == "" {
			return i, fmt.Errorf("location seed entry %d: id and key are required", i)
		}
		if err := store.Save(ctx, loc); err != nil {
			return i, err
		}
	}
	return len(f.Locations), nil
}
