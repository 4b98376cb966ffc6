package assemble

import (
	"strings"
	"testing"

	"conductor/internal/ports"
	"conductor/internal/registry"
)

func TestAssemble_ResolvesInPlanOrder(t *testing.T) {
	a := NewAssembler(registry.Default(), nil)
	plan := ports.ExecutionPlan{
		Intent:          ports.IntentDebug,
		FocusArea:       ports.FocusCode,
		IgnoreAreas:     []ports.FocusArea{ports.FocusMath},
		SelectedModules: []string{"core.reasoning", "core.grounding", "spec.debugging"},
	}

	payload := a.Assemble(plan)

	if len(payload.Modules) != 3 {
		t.Fatalf("expected 3 resolved modules, got %d", len(payload.Modules))
	}
	for i, want := range plan.SelectedModules {
		if payload.Modules[i].ID != want {
			t.Fatalf("module order not preserved: %v", payload.Modules)
		}
	}
	if !payload.Modules[0].Core || payload.Modules[2].Core {
		t.Fatalf("core flags wrong: %+v", payload.Modules)
	}
	if payload.Modules[2].Reason == payload.Modules[0].Reason {
		t.Fatal("specialist and core modules should carry different reasons")
	}
	if !strings.Contains(payload.Note, "Focus on code.") {
		t.Fatalf("note missing focus line:\n%s", payload.Note)
	}
	if !strings.Contains(payload.Note, "De-prioritize: math.") {
		t.Fatalf("note missing ignore line:\n%s", payload.Note)
	}
}

func TestAssemble_SkipsUnknownModules(t *testing.T) {
	a := NewAssembler(registry.Default(), nil)
	plan := ports.ExecutionPlan{
		FocusArea:       ports.FocusGeneral,
		SelectedModules: []string{"core.reasoning", "ghost.module"},
	}

	payload := a.Assemble(plan)

	if len(payload.Modules) != 1 || payload.Modules[0].ID != "core.reasoning" {
		t.Fatalf("unknown module should be skipped, got %+v", payload.Modules)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(registry.Default(), nil)
	plan := ports.ExecutionPlan{
		Intent:          ports.IntentExplanation,
		FocusArea:       ports.FocusArchitecture,
		SelectedModules: []string{"core.reasoning", "spec.architecture"},
	}

	if first, second := a.Assemble(plan), a.Assemble(plan); first.Note != second.Note {
		t.Fatal("identical plans must render identical notes")
	}
}
