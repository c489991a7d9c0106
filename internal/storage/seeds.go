package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// ErrSeedNotFound is returned by GetSeed when no file matches the id.
var ErrSeedNotFound = errors.New("seed not found")

// seedExtensions are tried in order when resolving a seed id.
var seedExtensions = []string{".json", ".yaml", ".yml"}

// SeedLoader reads character/campaign seeds from DATA_DIR/seeds. A seed's id
// is its filename without the extension.
type SeedLoader struct {
	dataDir string
	logger  *slog.Logger
}

func NewSeedLoader(dataDir string, logger *slog.Logger) *SeedLoader {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SeedLoader{dataDir: dataDir, logger: logger}
}

func (l *SeedLoader) seedsDir() string {
	return filepath.Join(l.dataDir, "seeds")
}

// ListSeeds returns the ids of all seed files, sorted.
func (l *SeedLoader) ListSeeds(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.seedsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !slices.Contains(seedExtensions, ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// GetSeed loads and validates a seed. JSON files are tried before YAML.
func (l *SeedLoader) GetSeed(ctx context.Context, seedID string) (*state.Seed, error) {
	if seedID == "" || seedID != filepath.Base(seedID) || strings.HasPrefix(seedID, ".") {
		return nil, fmt.Errorf("invalid seed id %q", seedID)
	}

	for _, ext := range seedExtensions {
		path := filepath.Join(l.seedsDir(), seedID+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
		}

		seed, err := DecodeSeed(data, ext)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seed %s: %w", path, err)
		}
		if _, err := state.NewWorldState(*seed); err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", seedID, err)
		}
		l.logger.Debug("Loaded seed", "seed_id", seedID, "path", path)
		return seed, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, seedID)
}

// DecodeSeed parses a seed file body. ext selects JSON (".json") or YAML
// (anything else).
func DecodeSeed(data []byte, ext string) (*state.Seed, error) {
	var seed state.Seed
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, err
		}
	}
	return &seed, nil
}
