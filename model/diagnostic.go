package model

import "github.com/golangoscal/metaschema/internal/types"

// Diagnostic represents an issue or coverage note found while loading
// documents or resolving definitions.
type Diagnostic struct {
	Severity  Severity
	Code      string // e.g., "definition-not-found", "unhandled-attribute"
	Message   string
	Document  string // model name of the document the construct lives in
	Path      string // resolved path of the affected node, "" if none
	Kind      Kind   // structure being resolved, 0 if not applicable
	Construct string // unhandled attribute or child name, if any
}

// DiagnosticConfig controls strictness and diagnostic filtering.
type DiagnosticConfig struct {
	// Level sets the base strictness level.
	// Diagnostics with severity > Level are suppressed.
	Level StrictnessLevel

	// FailAt sets the severity threshold for failure.
	// If any reported diagnostic has severity <= FailAt, resolution fails.
	// Default (0) means fail on Fatal only.
	FailAt Severity

	// Overrides change severity for specific diagnostic codes.
	Overrides map[string]Severity

	// Ignore lists diagnostic codes to suppress entirely.
	// Supports glob patterns (e.g., "unhandled-*").
	Ignore []string
}

// DefaultConfig returns the default diagnostic configuration (Normal strictness).
func DefaultConfig() DiagnosticConfig {
	return DiagnosticConfig{
		Level:  StrictnessNormal,
		FailAt: SeverityFatal,
	}
}

// StrictConfig reports every diagnostic, including coverage notes for
// constructs the resolver only partially understands.
func StrictConfig() DiagnosticConfig {
	return DiagnosticConfig{
		Level:  StrictnessStrict,
		FailAt: SeverityFatal,
	}
}

// PermissiveConfig hides the coverage chatter that real OSCAL schemas
// produce in bulk.
func PermissiveConfig() DiagnosticConfig {
	return DiagnosticConfig{
		Level:  StrictnessPermissive,
		FailAt: SeverityFatal,
		Ignore: []string{
			types.DiagUnhandledAttribute,
			types.DiagConstraintNotEvaluated,
		},
	}
}

// ConfigFor returns the preset configuration for a strictness level.
func ConfigFor(level StrictnessLevel) DiagnosticConfig {
	switch level {
	case StrictnessStrict:
		return StrictConfig()
	case StrictnessPermissive:
		return PermissiveConfig()
	case StrictnessSilent:
		return DiagnosticConfig{Level: StrictnessSilent}
	default:
		return DefaultConfig()
	}
}

// ShouldReport returns true if a diagnostic with the given code and severity
// should be reported under this configuration.
//
// The Level controls reporting threshold:
//   - Level 0 (Strict): Report all diagnostics (Info and above)
//   - Level 3 (Normal): Report Minor and above (0-3)
//   - Level 5 (Permissive): Report Warning and above (0-5)
//   - Level 6 (Silent): Report nothing
func (c DiagnosticConfig) ShouldReport(code string, sev Severity) bool {
	for _, pattern := range c.Ignore {
		if types.MatchGlob(pattern, code) {
			return false
		}
	}

	sev = c.Effective(code, sev)

	if c.Level >= StrictnessSilent {
		return false
	}
	if c.Level == StrictnessStrict {
		return true
	}
	return int(sev) <= int(c.Level)
}

// Effective returns the severity after applying any override for code.
func (c DiagnosticConfig) Effective(code string, sev Severity) Severity {
	if override, ok := c.Overrides[code]; ok {
		return override
	}
	return sev
}

// ShouldFail returns true if a diagnostic with the given severity should
// cause resolution to fail.
func (c DiagnosticConfig) ShouldFail(sev Severity) bool {
	return sev <= c.FailAt
}
