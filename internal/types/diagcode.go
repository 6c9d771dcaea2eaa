package types

// Diagnostic codes emitted by the document, import, and resolver phases.
// Centralizing these prevents silent breakage from typos in string literals.

// Document and import diagnostic codes.
const (
	DiagXMLParseError  = "xml-parse-error"
	DiagXPathError     = "xpath-error"
	DiagImportNotFound = "import-not-found"
	DiagImportInvalid  = "import-invalid"
	DiagImportCycle    = "import-cycle"
)

// Resolver diagnostic codes.
const (
	DiagDefinitionNotFound     = "definition-not-found"
	DiagDefinitionAmbiguous    = "definition-ambiguous"
	DiagUnhandledAttribute     = "unhandled-attribute"
	DiagUnhandledChild         = "unhandled-child"
	DiagDefaultOnReference     = "default-on-reference"
	DiagGroupAsOnFlag          = "group-as-on-flag"
	DiagInvalidVersion         = "invalid-version"
	DiagAnyWildcard            = "any-wildcard"
	DiagChoiceGroupPartial     = "choice-group-partial"
	DiagConstraintNotEvaluated = "constraint-not-evaluated"
	DiagRecursiveTruncated     = "recursive-truncated"
	DiagDefinitionCycle        = "definition-cycle"
	DiagStepLimit              = "step-limit"
)

// AllDiagnosticCodes returns all known diagnostic codes grouped by phase.
func AllDiagnosticCodes() []DiagCodeInfo {
	return []DiagCodeInfo{
		// Document
		{Code: DiagXMLParseError, Phase: "document"},
		{Code: DiagXPathError, Phase: "document"},
		// Imports
		{Code: DiagImportNotFound, Phase: "imports"},
		{Code: DiagImportInvalid, Phase: "imports"},
		{Code: DiagImportCycle, Phase: "imports"},
		// Resolver
		{Code: DiagDefinitionNotFound, Phase: "resolver"},
		{Code: DiagDefinitionAmbiguous, Phase: "resolver"},
		{Code: DiagUnhandledAttribute, Phase: "resolver"},
		{Code: DiagUnhandledChild, Phase: "resolver"},
		{Code: DiagDefaultOnReference, Phase: "resolver"},
		{Code: DiagGroupAsOnFlag, Phase: "resolver"},
		{Code: DiagInvalidVersion, Phase: "resolver"},
		{Code: DiagAnyWildcard, Phase: "resolver"},
		{Code: DiagChoiceGroupPartial, Phase: "resolver"},
		{Code: DiagConstraintNotEvaluated, Phase: "resolver"},
		{Code: DiagRecursiveTruncated, Phase: "resolver"},
		{Code: DiagDefinitionCycle, Phase: "resolver"},
		{Code: DiagStepLimit, Phase: "resolver"},
	}
}

// DiagCodeInfo describes a diagnostic code and the phase that emits it.
type DiagCodeInfo struct {
	Code  string
	Phase string
}
