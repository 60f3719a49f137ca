// Package spool persists assembled systems to run directories so they can
// be solved later, locally or by a submitted cluster job.
//
// A run directory holds meta.yaml with run metadata and system.bin with the
// CSR arrays in a length-delimited little-endian layout.
package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/emalign/emsolve/internal/assemble"
)

const (
	metaFile   = "meta.yaml"
	systemFile = "system.bin"
)

// RunMeta describes one assembled run.
type RunMeta struct {
	ID        string    `yaml:"id"`
	CreatedAt time.Time `yaml:"created_at"`
	Transform string    `yaml:"transform"`
	SolveType string    `yaml:"solve_type"`
	FirstZ    float64   `yaml:"first_z"`
	LastZ     float64   `yaml:"last_z"`
	DOF       int       `yaml:"dof"`
	Rows      int       `yaml:"rows"`
	Unknowns  int       `yaml:"unknowns"`
	NNZ       int       `yaml:"nnz"`
	TileIDs   []string  `yaml:"tile_ids"`
	ZVals     []float64 `yaml:"z_vals,flow"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WriteRun writes the system and its metadata into dir/<runID>/.
// Returns the run directory path.
func WriteRun(dir, runID string, solveType string, sys *assemble.System) (string, error) {
	runDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory %q; %w", runDir, err)
	}

	meta := RunMeta{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
		Transform: sys.Transform,
		SolveType: solveType,
		FirstZ:    sys.ZVals[0],
		LastZ:     sys.ZVals[len(sys.ZVals)-1],
		DOF:       sys.DOF,
		Rows:      sys.A.Rows,
		Unknowns:  sys.Unknowns(),
		NNZ:       sys.A.NNZ(),
		TileIDs:   sys.TileIDs,
		ZVals:     sys.ZVals,
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run metadata; %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, metaFile), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run metadata; %w", err)
	}

	if err := writeSystem(filepath.Join(runDir, systemFile), sys); err != nil {
		return "", err
	}

	return runDir, nil
}

// ReadRun loads the metadata and system from a run directory.
func ReadRun(runDir string) (*RunMeta, *assemble.System, error) {
	meta, err := ReadMeta(runDir)
	if err != nil {
		return nil, nil, err
	}

	sys, err := readSystem(filepath.Join(runDir, systemFile))
	if err != nil {
		return nil, nil, err
	}

	sys.Transform = meta.Transform
	sys.TileIDs = meta.TileIDs
	sys.DOF = meta.DOF
	sys.ZVals = meta.ZVals

	return meta, sys, nil
}

// ReadMeta loads only the metadata from a run directory.
func ReadMeta(runDir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(runDir, metaFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read run metadata; %w", err)
	}

	meta := &RunMeta{}
	if err := yaml.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run metadata; %w", err)
	}
	return meta, nil
}
