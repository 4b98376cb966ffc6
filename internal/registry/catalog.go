package registry

// Default builds the built-in catalog. Deployments extend it through
// RegisterModule/RegisterTool before the index is seeded.
func Default() *Registry {
	r := New()
	for _, m := range builtinModules {
		// Catalog literals below are unique by construction.
		_ = r.RegisterModule(m)
	}
	for _, t := range builtinTools {
		_ = r.RegisterTool(t)
	}
	return r
}

var builtinModules = []ModuleInfo{
	{
		ID:          "core.reasoning",
		Title:       "Core Reasoning",
		Description: "Baseline step-by-step reasoning over the user request. Decomposes the question, tracks intermediate conclusions, and keeps the answer anchored to what was asked.",
		Priority:    0,
		Core:        true,
	},
	{
		ID:          "core.context",
		Title:       "Conversation Context",
		Description: "Carries conversation history awareness: earlier requests, established terminology, and references the user expects to be remembered.",
		Priority:    1,
		Core:        true,
	},
	{
		ID:          "core.grounding",
		Title:       "Grounding & Safety",
		Description: "Keeps claims tied to provided material, flags uncertainty instead of inventing facts, and refuses unsafe operations.",
		Priority:    2,
		Core:        true,
	},
	{
		ID:          "spec.code-analysis",
		Title:       "Code Analysis",
		Description: "Reads and explains source code: control flow, data flow, API contracts, hidden coupling, and dead paths.",
		Priority:    10,
		Tags:        []string{"code", "analysis"},
	},
	{
		ID:          "spec.debugging",
		Title:       "Debugging",
		Description: "Diagnoses failures from stack traces, logs, and reproduction steps; proposes minimal fixes and regression guards.",
		Priority:    11,
		Tags:        []string{"code", "errors"},
	},
	{
		ID:          "spec.refactoring",
		Title:       "Refactoring",
		Description: "Restructures code without changing behavior: naming, extraction, dependency untangling, incremental migration plans.",
		Priority:    12,
		Tags:        []string{"code", "design"},
	},
	{
		ID:          "spec.testing",
		Title:       "Testing",
		Description: "Designs unit and integration tests, picks seams for mocking, and spots missing edge-case coverage.",
		Priority:    13,
		Tags:        []string{"code", "quality"},
	},
	{
		ID:          "spec.architecture",
		Title:       "Architecture",
		Description: "Evaluates system structure: boundaries, data ownership, scaling pressure points, and trade-offs between designs.",
		Priority:    14,
		Tags:        []string{"design"},
	},
	{
		ID:          "spec.performance",
		Title:       "Performance",
		Description: "Finds hot paths, allocation churn, and contention; suggests measurements before and after each change.",
		Priority:    15,
		Tags:        []string{"code", "profiling"},
	},
	{
		ID:          "spec.documentation",
		Title:       "Documentation",
		Description: "Writes and reviews reference docs, runbooks, and inline comments aimed at the next maintainer.",
		Priority:    16,
		Tags:        []string{"writing"},
	},
	{
		ID:          "spec.math",
		Title:       "Mathematics",
		Description: "Handles arithmetic, algebra, statistics, and numeric estimation with explicit working shown.",
		Priority:    17,
		Tags:        []string{"math"},
	},
}

var builtinTools = []ToolInfo{
	{
		ID:          "calculator",
		Category:    CategoryCalculation,
		Description: "Evaluates arithmetic and algebraic expressions exactly.",
		Keywords:    []string{"calculate", "sum", "plus", "minus", "times", "divide", "percent", "average"},
	},
	{
		ID:          "datetime",
		Category:    CategoryDateTime,
		Description: "Answers current date and time questions and converts between time zones.",
		Keywords:    []string{"today", "date", "time", "timezone", "now"},
	},
	{
		ID:          "code_search",
		Category:    CategoryCodeNav,
		Description: "Searches the workspace for symbols, strings, and file paths.",
		Keywords:    []string{"find", "search", "where", "locate", "grep"},
	},
	{
		ID:          "file_inspect",
		Category:    CategoryCodeNav,
		Description: "Reads a file region with surrounding context for inspection.",
		Keywords:    []string{"open", "read", "show", "file"},
	},
	{
		ID:          "diagnostics",
		Category:    CategoryDiagnostics,
		Description: "Collects compiler, linter, and runtime diagnostics for the current workspace.",
		Keywords:    []string{"error", "crash", "panic", "exception", "stack", "trace", "bug"},
	},
	{
		ID:          "test_runner",
		Category:    CategoryTesting,
		Description: "Runs the project test suite or a selected subset and reports failures.",
		Keywords:    []string{"test", "tests", "coverage", "assert", "failing"},
	},
	{
		ID:          "refactor_rename",
		Category:    CategoryRefactoring,
		Description: "Performs workspace-wide symbol renames and signature changes.",
		Keywords:    []string{"rename", "refactor", "extract", "move", "cleanup"},
	},
	{
		ID:          "doc_lookup",
		Category:    CategoryDocs,
		Description: "Looks up API reference documentation for a named library or symbol.",
		Keywords:    []string{"docs", "documentation", "reference", "api", "explain"},
	},
	{
		ID:          "web_search",
		Category:    CategorySearch,
		Description: "Searches the web for material newer than the model's training data.",
		Keywords:    []string{"latest", "news", "current", "recent", "web"},
	},
}
