// Package assemble resolves a plan's module selection into the guidance
// context injected into the model prompt. Pure: registry lookups only, no
// I/O.
package assemble

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/ports"
	"conductor/internal/registry"
)

// Assembler renders execution plans into context payloads.
type Assembler struct {
	reg    *registry.Registry
	logger logging.Logger
}

// NewAssembler builds an assembler over the given capability registry.
func NewAssembler(reg *registry.Registry, logger logging.Logger) *Assembler {
	if reg == nil {
		reg = registry.Default()
	}
	return &Assembler{reg: reg, logger: logging.OrNop(logger)}
}

// Assemble resolves the plan's module ids in plan order. Unknown ids are
// logged and skipped; the payload is always produced.
func (a *Assembler) Assemble(plan ports.ExecutionPlan) ports.ContextPayload {
	notes := make([]ports.ModuleNote, 0, len(plan.SelectedModules))
	for _, id := range plan.SelectedModules {
		mod, ok := a.reg.Module(id)
		if !ok {
			a.logger.Warn("Context assembly skipped unknown module %q", id)
			continue
		}
		notes = append(notes, ports.ModuleNote{
			ID:          mod.ID,
			Title:       mod.Title,
			Description: mod.Description,
			Core:        mod.Core,
			Reason:      reasonFor(mod, plan),
		})
	}
	return ports.ContextPayload{
		Modules: notes,
		Note:    renderNote(notes, plan),
	}
}

func reasonFor(mod registry.ModuleInfo, plan ports.ExecutionPlan) string {
	if mod.Core {
		return "always-on core module"
	}
	return fmt.Sprintf("specialist matched for %s", strings.ToLower(string(plan.Intent)))
}

// renderNote formats the structured context block. Deterministic for a
// given plan so identical plans produce identical prompts.
func renderNote(notes []ports.ModuleNote, plan ports.ExecutionPlan) string {
	var b strings.Builder
	b.WriteString("## Active guidance modules\n")
	for _, n := range notes {
		b.WriteString("- ")
		b.WriteString(n.Title)
		b.WriteString(" (")
		b.WriteString(n.ID)
		b.WriteString("): ")
		b.WriteString(n.Description)
		if n.Core {
			b.WriteString(" [core]")
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\nFocus on %s.", plan.FocusArea))
	if len(plan.IgnoreAreas) > 0 {
		areas := make([]string, len(plan.IgnoreAreas))
		for i, area := range plan.IgnoreAreas {
			areas[i] = string(area)
		}
		b.WriteString(" De-prioritize: ")
		b.WriteString(strings.Join(areas, ", "))
		b.WriteString(".")
	}
	b.WriteString("\n")
	return b.String()
}
