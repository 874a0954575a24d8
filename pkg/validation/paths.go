// Package validation provides pre-run path validation
package validation

import (
	"fmt"
	"os"
)

// PathValidator checks that every path the pipeline depends on exists
// before any weaver or cache state is touched. A fast, clear validation
// error beats a late failure inside the isolation boundary.
type PathValidator struct{}

// NewPathValidator creates a new path validator
func NewPathValidator() *PathValidator {
	return &PathValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Path, e.Message)
}

// ValidateRun validates the paths required for a weave run: the solution
// directory, the project directory and the target assembly. Reads
// filesystem metadata only.
func (v *PathValidator) ValidateRun(solutionDir, projectDir, assemblyPath string) error {
	if err := v.requireDir("solution directory", solutionDir); err != nil {
		return err
	}
	if err := v.requireDir("project directory", projectDir); err != nil {
		return err
	}
	return v.requireFile("target assembly", assemblyPath)
}

func (v *PathValidator) requireDir(field, path string) error {
	if path == "" {
		return &ValidationError{Field: field, Message: "path is required"}
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &ValidationError{Field: field, Path: path, Message: "does not exist"}
	}
	if err != nil {
		return &ValidationError{Field: field, Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		return &ValidationError{Field: field, Path: path, Message: "is not a directory"}
	}
	return nil
}

func (v *PathValidator) requireFile(field, path string) error {
	if path == "" {
		return &ValidationError{Field: field, Message: "path is required"}
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &ValidationError{Field: field, Path: path, Message: "does not exist"}
	}
	if err != nil {
		return &ValidationError{Field: field, Path: path, Message: err.Error()}
	}
	if info.IsDir() {
		return &ValidationError{Field: field, Path: path, Message: "is a directory, expected a file"}
	}
	return nil
}
