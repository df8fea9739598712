package config_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/cyoa/internal/platform/config"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

// TestExitf_ExitsWithCode1 verifies that Exitf writes to stderr and exits
// with code 1. It uses the subprocess test pattern because os.Exit cannot be
// intercepted in-process.
func TestExitf_ExitsWithCode1(t *testing.T) {
	if os.Getenv("CYOA_TEST_EXITF_SUBPROCESS") == "1" {
		config.Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf_ExitsWithCode1$")
	cmd.Env = append(os.Environ(), "CYOA_TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected stderr to contain %q, got %q", "fatal: something broke", string(out))
	}
}

func TestWriteErrorIncludesDiagnostic(t *testing.T) {
	var buf strings.Builder
	err := apperrors.WithMetadata(apperrors.CodeContractViolation, "unknown int", map[string]string{"name": "silver"})
	config.WriteError(&buf, fmt.Errorf("play: %w", err))

	out := buf.String()
	if !strings.Contains(out, "Error: play: unknown int") {
		t.Fatalf("expected wrapped message, got %q", out)
	}
	if !strings.Contains(out, "CONTRACT_VIOLATION") || !strings.Contains(out, "name: silver") {
		t.Fatalf("expected diagnostic details, got %q", out)
	}
}

func TestWriteErrorPlain(t *testing.T) {
	var buf strings.Builder
	config.WriteError(&buf, errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	buf.Reset()
	config.WriteError(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output for nil error, got %q", buf.String())
	}
}
