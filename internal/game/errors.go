package game

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

// Host-side misuse of the instance. These are programming errors in the
// caller, not problems with story content.
var (
	ErrContextMoved   = errors.New("context has been moved out of the instance")
	ErrStaleChoice    = errors.New("choice does not belong to the live context")
	ErrChoiceInFlight = errors.New("a choice is already executing")
	ErrInstanceClosed = errors.New("instance is closed")
)

// IsContractViolation reports whether err was caused by story content
// breaking the runtime contract.
func IsContractViolation(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeContractViolation)
}

// violation describes one script-contract violation.
type violation struct {
	builtin string // builtin or host accessor that detected it
	field   string
	name    string
	detail  string
}

func (v violation) err(cause error) *apperrors.Error {
	metadata := map[string]string{
		"builtin": v.builtin,
		"detail":  v.detail,
	}
	if sig, ok := Signature(v.builtin); ok {
		metadata["signature"] = v.builtin + sig
	}
	if v.field != "" {
		metadata["field"] = v.field
	}
	if v.name != "" {
		metadata["name"] = v.name
	}
	message := fmt.Sprintf("%s: %s", v.builtin, v.detail)
	return apperrors.WrapWithMetadata(apperrors.CodeContractViolation, message, metadata, cause)
}
