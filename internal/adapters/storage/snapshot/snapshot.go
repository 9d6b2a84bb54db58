// Package snapshot persists the in-memory profile and effectiveness stores
// to a zstd-compressed JSON file, so memory mode survives restarts.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Version is bumped when the file layout changes.
const Version = 1

// Data is the on-disk document.
type Data struct {
	Version       int                                                   `json:"version"`
	TakenAt       time.Time                                             `json:"taken_at"`
	Profiles      []*domain.UserProfile                                 `json:"profiles"`
	Effectiveness map[domain.InterventionKey]domain.EffectivenessRecord `json:"effectiveness"`
}

// Source is what Save reads from; memory.ProfileStore and
// memory.EffectivenessStore provide it.
type Source interface {
	All() []*domain.UserProfile
}

type EffectivenessSource interface {
	All() map[domain.InterventionKey]domain.EffectivenessRecord
}

// Target is what Load restores into.
type Target interface {
	Replace(profiles []*domain.UserProfile)
}

type EffectivenessTarget interface {
	Replace(records map[domain.InterventionKey]domain.EffectivenessRecord)
}

// Save writes a snapshot atomically: to a temp file in the same directory,
// then renamed over path.
func Save(path string, profiles Source, eff EffectivenessSource, now time.Time) error {
	data := Data{
		Version:       Version,
		TakenAt:       now,
		Profiles:      profiles.All(),
		Effectiveness: eff.All(),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".farum-snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}

	if err := json.NewEncoder(encoder).Encode(data); err != nil {
		encoder.Close()
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := encoder.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finalize compression: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Read decodes the snapshot at path.
func Read(path string) (*Data, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var data Data
	if err := json.NewDecoder(decoder).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if data.Version != Version {
		return nil, fmt.Errorf("snapshot version %d not supported", data.Version)
	}
	for _, p := range data.Profiles {
		if p.Effectiveness == nil {
			p.Effectiveness = make(map[domain.InterventionKey]domain.EffectivenessRecord)
		}
	}
	return &data, nil
}

// Load restores the snapshot at path into the stores. A missing file is not
// an error and reports false.
func Load(path string, profiles Target, eff EffectivenessTarget) (bool, error) {
	data, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	profiles.Replace(data.Profiles)
	eff.Replace(data.Effectiveness)
	return true, nil
}
