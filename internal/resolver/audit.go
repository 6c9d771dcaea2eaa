package resolver

import (
	"strings"

	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/model"
)

// reportDefinitionCycles emits one definition-cycle diagnostic per
// strongly connected component of the definition graph walked during the
// run. Every such cycle was truncated with a recursive node.
func (r *runContext) reportDefinitionCycles() int {
	cycles := r.defs.FindCycles()
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, sym := range cycle {
			names[i] = r.models[sym.Document] + ":" + sym.Name
		}
		r.emit(model.Diagnostic{
			Severity: model.SeverityInfo,
			Code:     types.DiagDefinitionCycle,
			Message:  "definitions refer to each other: " + strings.Join(names, ", "),
			Document: r.models[cycle[0].Document],
			Kind:     kindOf(cycle[0].Kind),
		})
	}
	return len(cycles)
}

func kindOf(s string) model.Kind {
	k, _ := model.ParseKind(s)
	return k
}
