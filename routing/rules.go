package routing

// Built-in rule tables. Unit costs track published per-1K-token pricing
// for each model and only matter relative to each other for estimates.

// Well-known provider names used across the built-in tables.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderQwen   = "qwen"
	ProviderCodex  = "codex"
)

var (
	claudeSonnet = Selection{Provider: ProviderClaude, Model: "claude-sonnet-4-5", UnitCost: 0.003}
	claudeOpus   = Selection{Provider: ProviderClaude, Model: "claude-opus-4-1", UnitCost: 0.015}
	geminiPro    = Selection{Provider: ProviderGemini, Model: "gemini-2.5-pro", UnitCost: 0.00125}
	geminiFlash  = Selection{Provider: ProviderGemini, Model: "gemini-2.5-flash", UnitCost: 0.0003}
	qwenMax      = Selection{Provider: ProviderQwen, Model: "qwen3-max", UnitCost: 0.0016}
	codexGPT     = Selection{Provider: ProviderCodex, Model: "gpt-5.2-codex", UnitCost: 0.00175}
)

// DefaultSelection is returned when no skill or keyword rule matches.
var DefaultSelection = geminiFlash

// GatewaySelection represents delegation to an external auto-routing
// gateway; the model is chosen downstream, so only a nominal cost is
// attached for estimates.
var GatewaySelection = Selection{Provider: "gateway", Model: "auto-routing", UnitCost: 0.0005}

// DefaultSkillRules returns the built-in skill table. Order matters only
// for documentation; lookup is keyed by the task's own skill order.
func DefaultSkillRules() []SkillRule {
	return []SkillRule{
		{Skill: "golang", Selection: claudeSonnet},
		{Skill: "backend", Selection: claudeSonnet},
		{Skill: "python", Selection: codexGPT},
		{Skill: "frontend", Selection: geminiPro},
		{Skill: "react", Selection: geminiPro},
		{Skill: "security", Selection: claudeOpus},
		{Skill: "code-review", Selection: claudeOpus},
		{Skill: "translation", Selection: qwenMax},
		{Skill: "chinese", Selection: qwenMax},
	}
}

// DefaultKeywordRules returns the built-in keyword groups in evaluation
// priority order: backend, frontend, review, locale.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Name:      "backend",
			Keywords:  []string{"backend", "api", "database"},
			Selection: claudeSonnet,
		},
		{
			Name:      "frontend",
			Keywords:  []string{"frontend", "react", "ui"},
			Selection: geminiPro,
		},
		{
			Name:      "review",
			Keywords:  []string{"review", "audit", "security"},
			Selection: claudeOpus,
		},
		{
			Name:      "locale",
			Keywords:  []string{"chinese", "中文", "translation"},
			Selection: qwenMax,
		},
	}
}
