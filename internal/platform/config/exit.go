package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// It provides a consistent fatal-exit pattern for CLI entry points.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// ExitError reports err on stderr and exits with code 1. Domain errors are
// printed with their code and metadata so story authors can locate the
// offending script call.
func ExitError(err error) {
	WriteError(os.Stderr, err)
	os.Exit(1)
}

// WriteError writes the fatal report for err to w.
func WriteError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var domainErr *apperrors.Error
	if stderrors.As(err, &domainErr) {
		fmt.Fprintf(w, "Error: %v\n%s\n", err, domainErr.Diagnostic())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
