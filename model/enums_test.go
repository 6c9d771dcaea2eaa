package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindRoundTrip(t *testing.T) {
	for k := KindAssembly; k <= KindRecursive; k++ {
		got, ok := ParseKind(k.String())
		assert.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("define-choice")
	assert.False(t, ok)
	assert.Equal(t, "Kind(0)", Kind(0).String())
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind       Kind
		reference  bool
		definition bool
		def        Kind
		structure  Kind
	}{
		{KindAssembly, true, false, KindDefineAssembly, KindAssembly},
		{KindField, true, false, KindDefineField, KindField},
		{KindFlag, true, false, KindDefineFlag, KindFlag},
		{KindDefineAssembly, false, true, KindDefineAssembly, KindAssembly},
		{KindDefineField, false, true, KindDefineField, KindField},
		{KindDefineFlag, false, true, KindDefineFlag, KindFlag},
		{KindChoice, false, false, 0, KindChoice},
		{KindAny, false, false, 0, KindAny},
		{KindRecursive, false, false, 0, KindRecursive},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.reference, tt.kind.IsReference())
			assert.Equal(t, tt.definition, tt.kind.IsDefinition())
			assert.Equal(t, tt.def, tt.kind.Definition())
			assert.Equal(t, tt.structure, tt.kind.Structure())
		})
	}
}

func TestParseSeverityAndStrictness(t *testing.T) {
	sev, ok := ParseSeverity("warning")
	assert.True(t, ok)
	assert.Equal(t, SeverityWarning, sev)
	_, ok = ParseSeverity("loud")
	assert.False(t, ok)

	lvl, ok := ParseStrictness("")
	assert.True(t, ok)
	assert.Equal(t, StrictnessNormal, lvl)
	lvl, ok = ParseStrictness("permissive")
	assert.True(t, ok)
	assert.Equal(t, StrictnessPermissive, lvl)
	_, ok = ParseStrictness("lenient")
	assert.False(t, ok)
}
