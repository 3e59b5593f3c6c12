package repository

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/judgeflow/internal/domain/model"
)

// LoadSnapshot decodes a YAML snapshot (teams, judges, assignments) and
// validates it. Unknown keys are rejected.
func LoadSnapshot(r io.Reader) (model.Snapshot, error) {
	var snap model.Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := ValidateSnapshot(snap); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// LoadSnapshotFile reads a YAML snapshot from path.
func LoadSnapshotFile(path string) (model.Snapshot, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// WriteSnapshot encodes snap as YAML.
func WriteSnapshot(w io.Writer, snap model.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}
