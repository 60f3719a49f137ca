package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validKSPTypes lists recognized Krylov solver types.
// preonly defers to the cluster factorization; cg solves locally.
var validKSPTypes = map[string]bool{
	"preonly": true,
	"cg":      true,
}

// validPCTypes lists recognized preconditioner types per KSP type.
var validPCTypes = map[string]bool{
	"lu":     true,
	"jacobi": true,
	"none":   true,
}

// validTransforms lists recognized transform models.
var validTransforms = map[string]bool{
	"affine":      true,
	"translation": true,
}

// walltimeRe matches HH:MM:SS walltime specifications.
var walltimeRe = regexp.MustCompile(`^\d{1,3}:\d{2}:\d{2}$`)

// Validate checks the configuration for errors.
// Returns ValidationErrors if validation fails.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Spool.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "spool.dir",
			Message: "must not be empty",
		})
	}

	if cfg.Store.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "store.path",
			Message: "must not be empty",
		})
	}

	if cfg.Registry.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "registry.path",
			Message: "must not be empty",
		})
	}

	// Cluster
	if cfg.Cluster.Queue == "" {
		errs = append(errs, ValidationError{
			Field:   "cluster.queue",
			Message: "must not be empty",
		})
	}

	if cfg.Cluster.Nodes < 1 {
		errs = append(errs, ValidationError{
			Field:   "cluster.nodes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Cluster.Nodes),
		})
	}

	if cfg.Cluster.PPN < 1 {
		errs = append(errs, ValidationError{
			Field:   "cluster.ppn",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Cluster.PPN),
		})
	}

	if !walltimeRe.MatchString(cfg.Cluster.Walltime) {
		errs = append(errs, ValidationError{
			Field:   "cluster.walltime",
			Message: fmt.Sprintf("must be HH:MM:SS, got %q", cfg.Cluster.Walltime),
		})
	}

	if cfg.Cluster.SolverBinary == "" {
		errs = append(errs, ValidationError{
			Field:   "cluster.solver_binary",
			Message: "must not be empty",
		})
	}

	if cfg.Cluster.PollInterval < 1 {
		errs = append(errs, ValidationError{
			Field:   "cluster.poll_interval",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.Cluster.PollInterval),
		})
	}

	// Solver
	if !validKSPTypes[cfg.Solver.KSPType] {
		errs = append(errs, ValidationError{
			Field:   "solver.ksp_type",
			Message: fmt.Sprintf("must be one of: preonly, cg; got %q", cfg.Solver.KSPType),
		})
	}

	if !validPCTypes[cfg.Solver.PCType] {
		errs = append(errs, ValidationError{
			Field:   "solver.pc_type",
			Message: fmt.Sprintf("must be one of: lu, jacobi, none; got %q", cfg.Solver.PCType),
		})
	}

	if cfg.Solver.KSPType == "preonly" && cfg.Solver.PCType != "lu" {
		errs = append(errs, ValidationError{
			Field:   "solver.pc_type",
			Message: fmt.Sprintf("preonly requires a direct factorization (pc_type lu), got %q", cfg.Solver.PCType),
		})
	}

	if cfg.Solver.RTol <= 0 || cfg.Solver.RTol >= 1 {
		errs = append(errs, ValidationError{
			Field:   "solver.rtol",
			Message: fmt.Sprintf("must be in (0, 1), got %g", cfg.Solver.RTol),
		})
	}

	if cfg.Solver.MaxIter < 1 {
		errs = append(errs, ValidationError{
			Field:   "solver.max_iter",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Solver.MaxIter),
		})
	}

	// Assembly
	if !validTransforms[cfg.Assembly.Transform] {
		errs = append(errs, ValidationError{
			Field:   "assembly.transform",
			Message: fmt.Sprintf("must be one of: affine, translation; got %q", cfg.Assembly.Transform),
		})
	}

	if cfg.Assembly.Depth < 0 {
		errs = append(errs, ValidationError{
			Field:   "assembly.depth",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Assembly.Depth),
		})
	}

	if cfg.Assembly.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "assembly.workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Assembly.Workers),
		})
	}

	if cfg.Assembly.MinPoints < 1 {
		errs = append(errs, ValidationError{
			Field:   "assembly.min_points",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Assembly.MinPoints),
		})
	}

	if cfg.Assembly.MaxPoints < cfg.Assembly.MinPoints {
		errs = append(errs, ValidationError{
			Field:   "assembly.max_points",
			Message: fmt.Sprintf("must be >= min_points (%d), got %d", cfg.Assembly.MinPoints, cfg.Assembly.MaxPoints),
		})
	}

	if len(cfg.Assembly.DepthWeights) > 0 && len(cfg.Assembly.DepthWeights) != cfg.Assembly.Depth+1 {
		errs = append(errs, ValidationError{
			Field:   "assembly.depth_weights",
			Message: fmt.Sprintf("must have depth+1 entries (%d), got %d", cfg.Assembly.Depth+1, len(cfg.Assembly.DepthWeights)),
		})
	}

	if cfg.Assembly.Lambda <= 0 {
		errs = append(errs, ValidationError{
			Field:   "assembly.lambda",
			Message: fmt.Sprintf("must be positive, got %g", cfg.Assembly.Lambda),
		})
	}

	if cfg.Assembly.TranslationFactor <= 0 {
		errs = append(errs, ValidationError{
			Field:   "assembly.translation_factor",
			Message: fmt.Sprintf("must be positive, got %g", cfg.Assembly.TranslationFactor),
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
