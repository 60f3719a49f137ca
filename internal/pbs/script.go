// Package pbs renders and submits batch jobs to a PBS/Torque scheduler and
// queries their state through qstat.
package pbs

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed job.tmpl
var templates embed.FS

var jobTemplate = template.Must(template.ParseFS(templates, "job.tmpl"))

// JobSpec holds everything the job script template needs.
type JobSpec struct {
	Name       string
	Queue      string
	Nodes      int
	PPN        int
	Walltime   string
	LogPath    string
	Email      string
	ModuleLoad string

	MPIExec       string
	SolverBinary  string
	InputPath     string
	OutputPath    string
	KSPType       string
	PCType        string
	FactorPackage string
	LogView       bool
}

// Ranks is the total MPI rank count the job launches.
func (s *JobSpec) Ranks() int {
	return s.Nodes * s.PPN
}

// Render writes the job script for the spec.
func Render(w io.Writer, spec *JobSpec) error {
	if err := jobTemplate.Execute(w, spec); err != nil {
		return fmt.Errorf("failed to render job script; %w", err)
	}
	return nil
}

// WriteScript renders the job script into dir and returns its path.
func WriteScript(dir string, spec *JobSpec) (string, error) {
	path := filepath.Join(dir, spec.Name+".pbs")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create job script %q; %w", path, err)
	}
	defer f.Close()

	if err := Render(f, spec); err != nil {
		return "", err
	}
	return path, nil
}
