// Package model provides the resolved Metaschema model: nodes, trees, and
// the diagnostics collected while producing them.
package model

import "fmt"

// Severity levels for diagnostics (libsmi-compatible scale).
// Lower values are more severe.
type Severity int

const (
	SeverityFatal   Severity = 0 // Run cannot continue
	SeveritySevere  Severity = 1 // Output changed to continue, must correct
	SeverityError   Severity = 2 // Subtree dropped, should correct
	SeverityMinor   Severity = 3 // Minor issue, should correct
	SeverityStyle   Severity = 4 // Style recommendation
	SeverityWarning Severity = 5 // Might be correct under some circumstances
	SeverityInfo    Severity = 6 // Coverage or informational notice
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeveritySevere:
		return "severe"
	case SeverityError:
		return "error"
	case SeverityMinor:
		return "minor"
	case SeverityStyle:
		return "style"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

// ParseSeverity maps a severity name back to its value.
func ParseSeverity(s string) (Severity, bool) {
	for sev := SeverityFatal; sev <= SeverityInfo; sev++ {
		if sev.String() == s {
			return sev, true
		}
	}
	return 0, false
}

// StrictnessLevel defines preset reporting configurations.
type StrictnessLevel int

const (
	StrictnessStrict     StrictnessLevel = 0 // Report everything, including coverage notes
	StrictnessNormal     StrictnessLevel = 3 // Default, report problems
	StrictnessPermissive StrictnessLevel = 5 // Report problems and warnings
	StrictnessSilent     StrictnessLevel = 6 // Report nothing
)

func (l StrictnessLevel) String() string {
	switch l {
	case StrictnessStrict:
		return "strict"
	case StrictnessNormal:
		return "normal"
	case StrictnessPermissive:
		return "permissive"
	case StrictnessSilent:
		return "silent"
	default:
		return fmt.Sprintf("StrictnessLevel(%d)", l)
	}
}

// ParseStrictness maps a preset name to its level.
func ParseStrictness(s string) (StrictnessLevel, bool) {
	switch s {
	case "strict":
		return StrictnessStrict, true
	case "normal", "":
		return StrictnessNormal, true
	case "permissive":
		return StrictnessPermissive, true
	case "silent":
		return StrictnessSilent, true
	}
	return 0, false
}

// Kind identifies a Metaschema structure. The reference and definition
// kinds name the XML element being resolved; resolved nodes only ever
// carry one of Assembly, Field, Flag, Choice, Any, or Recursive.
type Kind int

const (
	KindAssembly       Kind = iota + 1 // assembly[@ref]
	KindField                          // field[@ref]
	KindFlag                           // flag[@ref]
	KindDefineAssembly                 // define-assembly[@name]
	KindDefineField                    // define-field[@name]
	KindDefineFlag                     // define-flag[@name]
	KindChoice                         // choice of alternatives
	KindAny                            // open extension point
	KindRecursive                      // truncated self reference
)

var kindNames = [...]string{
	KindAssembly:       "assembly",
	KindField:          "field",
	KindFlag:           "flag",
	KindDefineAssembly: "define-assembly",
	KindDefineField:    "define-field",
	KindDefineFlag:     "define-flag",
	KindChoice:         "choice",
	KindAny:            "any",
	KindRecursive:      "recursive",
}

// String returns the Metaschema element name for the kind.
func (k Kind) String() string {
	if k >= KindAssembly && k <= KindRecursive {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind maps an element name to its kind.
func ParseKind(s string) (Kind, bool) {
	for k := KindAssembly; k <= KindRecursive; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// IsReference reports whether k is a reference kind (assembly, field, flag).
func (k Kind) IsReference() bool {
	switch k {
	case KindAssembly, KindField, KindFlag:
		return true
	case KindDefineAssembly, KindDefineField, KindDefineFlag, KindChoice, KindAny, KindRecursive:
		return false
	}
	return false
}

// IsDefinition reports whether k is a definition kind.
func (k Kind) IsDefinition() bool {
	switch k {
	case KindDefineAssembly, KindDefineField, KindDefineFlag:
		return true
	case KindAssembly, KindField, KindFlag, KindChoice, KindAny, KindRecursive:
		return false
	}
	return false
}

// Definition returns the definition kind a reference kind points at.
// Definition kinds return themselves; other kinds return 0.
func (k Kind) Definition() Kind {
	switch k {
	case KindAssembly, KindDefineAssembly:
		return KindDefineAssembly
	case KindField, KindDefineField:
		return KindDefineField
	case KindFlag, KindDefineFlag:
		return KindDefineFlag
	case KindChoice, KindAny, KindRecursive:
		return 0
	}
	return 0
}

// Structure returns the kind carried by a resolved node: definition kinds
// collapse onto their reference counterpart.
func (k Kind) Structure() Kind {
	switch k {
	case KindAssembly, KindDefineAssembly:
		return KindAssembly
	case KindField, KindDefineField:
		return KindField
	case KindFlag, KindDefineFlag:
		return KindFlag
	case KindChoice, KindAny, KindRecursive:
		return k
	}
	return 0
}
