package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown           = "UNKNOWN"
	CodeLibraryUnreadable = "LIBRARY_UNREADABLE"
	CodeStoryNotFound     = "STORY_NOT_FOUND"
	CodeManifestInvalid   = "MANIFEST_INVALID"
	CodeScriptLoad        = "SCRIPT_LOAD"
	CodeScriptParse       = "SCRIPT_PARSE"
	CodeEngineInit        = "ENGINE_INIT"
	CodeEntryNotFound     = "ENTRY_NOT_FOUND"
	CodeContractViolation = "CONTRACT_VIOLATION"
)

var enUSMessages = map[Code]string{
	CodeUnknown:           "Something went wrong.",
	CodeLibraryUnreadable: "The story library at {{.path}} could not be read.",
	CodeStoryNotFound:     "The story {{.story}} could not be found.",
	CodeManifestInvalid:   "The manifest {{.path}} is invalid: {{.detail}}",
	CodeScriptLoad:        "The scripts in {{.path}} could not be read: {{.detail}}",
	CodeScriptParse:       "The script {{.module}} has a syntax error: {{.detail}}",
	CodeEngineInit:        "The story engine could not start: {{.detail}}",
	CodeEntryNotFound:     "The story has no {{.function}} function in {{.module}}.",
	CodeContractViolation: "The story script broke the runtime contract in {{.builtin}}: {{.detail}}",
}
