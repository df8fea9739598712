// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Library errors
	CodeLibraryUnreadable Code = "LIBRARY_UNREADABLE"
	CodeStoryNotFound     Code = "STORY_NOT_FOUND"
	CodeManifestInvalid   Code = "MANIFEST_INVALID"

	// Script loading and engine errors
	CodeScriptLoad    Code = "SCRIPT_LOAD"
	CodeScriptParse   Code = "SCRIPT_PARSE"
	CodeEngineInit    Code = "ENGINE_INIT"
	CodeEntryNotFound Code = "ENTRY_NOT_FOUND"

	// Story content errors
	CodeContractViolation Code = "CONTRACT_VIOLATION"
)

// Recoverable reports whether an error with this code can be reported to the
// player before returning to story selection. Contract violations and unknown
// errors are fatal.
func (c Code) Recoverable() bool {
	switch c {
	case CodeLibraryUnreadable,
		CodeStoryNotFound,
		CodeManifestInvalid,
		CodeScriptLoad,
		CodeScriptParse,
		CodeEngineInit,
		CodeEntryNotFound:
		return true
	default:
		return false
	}
}
