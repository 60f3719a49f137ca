// Package export writes assembled systems and solutions as HDF5 files.
//
// The solver input file carries the CSR arrays under /data, /indices,
// /indptr plus /weights, /rhs, /lambda and /x0, which is the layout the
// distributed solver reads. Tile identifiers stay in the run metadata next
// to the file; HDF5 datasets here are purely numeric.
package export

import (
	"fmt"
	"path/filepath"

	"github.com/scigolib/hdf5"

	"github.com/emalign/emsolve/internal/assemble"
	"github.com/emalign/emsolve/internal/solver"
)

const (
	// SolverInputFile is the file name the submitted job reads.
	SolverInputFile = "solution_input.h5"
	// SolutionFile is the file name a local solve writes.
	SolutionFile = "solution_output.h5"
)

// WriteSolverInput writes the system into runDir as the distributed solver
// input file. Returns the file path.
func WriteSolverInput(runDir string, sys *assemble.System) (string, error) {
	path := filepath.Join(runDir, SolverInputFile)

	f, err := hdf5.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create solver input file %q; %w", path, err)
	}
	defer f.Close()

	datasets := []struct {
		name string
		data any
	}{
		{"/data", sys.A.Data},
		{"/indices", sys.A.Indices},
		{"/indptr", sys.A.Indptr},
		{"/weights", []float64(sys.Weights)},
		{"/rhs", sys.RHS},
		{"/lambda", []float64(sys.Reg)},
		{"/x0", sys.X0},
	}
	for _, ds := range datasets {
		if err := f.WriteDataset(ds.name, ds.data); err != nil {
			return "", fmt.Errorf("failed to write dataset %s; %w", ds.name, err)
		}
	}

	return path, nil
}

// WriteSolution writes a solved vector and its diagnostics into runDir.
// Returns the file path.
func WriteSolution(runDir string, sys *assemble.System, x []float64, res *solver.Result) (string, error) {
	path := filepath.Join(runDir, SolutionFile)

	f, err := hdf5.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create solution file %q; %w", path, err)
	}
	defer f.Close()

	datasets := []struct {
		name string
		data any
	}{
		{"/solution", x},
		{"/precision", []float64{res.Precision}},
		{"/error", []float64{res.ErrorNorm}},
		{"/iterations", []int64{int64(res.Iterations)}},
		{"/dof", []int64{int64(sys.DOF)}},
		{"/z_values", sys.ZVals},
	}
	for _, ds := range datasets {
		if err := f.WriteDataset(ds.name, ds.data); err != nil {
			return "", fmt.Errorf("failed to write dataset %s; %w", ds.name, err)
		}
	}

	return path, nil
}

// SolverOutputPath is where a submitted job is told to write its result.
func SolverOutputPath(runDir string) string {
	return filepath.Join(runDir, SolutionFile)
}

// SolverInputPath is where the solver input file lives inside a run
// directory.
func SolverInputPath(runDir string) string {
	return filepath.Join(runDir, SolverInputFile)
}
