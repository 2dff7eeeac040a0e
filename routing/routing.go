// Package routing maps tasks to an AI provider, model, and unit cost.
//
// Selection is rule-driven and deterministic: an ordered skill table is
// consulted first, then ordered keyword groups over the task text, then a
// fixed default. All functions are pure and safe for concurrent use.
package routing

import (
	"strings"

	"github.com/crewkit/crewkit/task"
)

// Selection identifies a provider, model, and unit cost for one task.
// UnitCost is USD per 1000 tokens.
type Selection struct {
	Provider string  `json:"provider" yaml:"provider"`
	Model    string  `json:"model" yaml:"model"`
	UnitCost float64 `json:"unit_cost" yaml:"unit_cost"`
}

// SkillRule binds a single declared skill to a selection.
type SkillRule struct {
	Skill     string    `json:"skill" yaml:"skill"`
	Selection Selection `json:"selection" yaml:"selection"`
}

// KeywordRule binds a group of keywords to a selection. Groups are
// evaluated in list order; within a group any substring match wins.
type KeywordRule struct {
	Name      string    `json:"name" yaml:"name"`
	Keywords  []string  `json:"keywords" yaml:"keywords"`
	Selection Selection `json:"selection" yaml:"selection"`
}

// DefaultAvgTokensPerTask is the token volume assumed per task when the
// caller does not supply its own estimate.
const DefaultAvgTokensPerTask = 12000

// Engine evaluates routing rules. The zero value is unusable; construct
// with NewEngine or populate all fields.
type Engine struct {
	Skills   []SkillRule
	Keywords []KeywordRule
	Default  Selection
	Gateway  Selection
}

// NewEngine returns an engine loaded with the built-in rule tables.
func NewEngine() *Engine {
	return &Engine{
		Skills:   DefaultSkillRules(),
		Keywords: DefaultKeywordRules(),
		Default:  DefaultSelection,
		Gateway:  GatewaySelection,
	}
}

// SelectProvider picks the provider, model, and unit cost for a task.
//
// Declared skills are scanned in the task's own list order and the first
// skill present in the skill table wins, regardless of the task text.
// Otherwise keyword groups are tested in table order against the
// lowercased subject+description. No match yields the default selection.
func (e *Engine) SelectProvider(t *task.Task) Selection {
	for _, skill := range t.Skills {
		want := strings.ToLower(strings.TrimSpace(skill))
		if want == "" {
			continue
		}
		for _, rule := range e.Skills {
			if rule.Skill == want {
				return rule.Selection
			}
		}
	}

	text := strings.ToLower(t.Subject + " " + t.Description)
	for _, group := range e.Keywords {
		for _, kw := range group.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return group.Selection
			}
		}
	}

	return e.Default
}

// SelectViaGateway delegates model choice to an external smart-routing
// gateway. The rule tables are never consulted.
func (e *Engine) SelectViaGateway(_ *task.Task) Selection {
	return e.Gateway
}

// EstimateCost sums the expected USD cost of running every task once,
// assuming avgTokensPerTask tokens each. Zero or negative avg falls back
// to DefaultAvgTokensPerTask. An empty task list costs nothing.
func (e *Engine) EstimateCost(tasks []*task.Task, avgTokensPerTask int) float64 {
	if avgTokensPerTask <= 0 {
		avgTokensPerTask = DefaultAvgTokensPerTask
	}
	var total float64
	for _, t := range tasks {
		sel := e.SelectProvider(t)
		total += sel.UnitCost * float64(avgTokensPerTask) / 1000
	}
	return total
}
