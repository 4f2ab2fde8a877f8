package models

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"
)

// ResultVersion is the envelope version understood by the dashboard.
const ResultVersion = 2

// CostEstimate is the rough per-agent budget shown next to each step.
type CostEstimate struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
	TimeSec   int `json:"time_sec"`
}

// AgentCostEstimates are the static per-agent estimates. Unknown agents cost nothing.
var AgentCostEstimates = map[string]CostEstimate{
	"researcher": {TokensIn: 4000, TokensOut: 2000, TimeSec: 30},
	"writer":     {TokensIn: 5000, TokensOut: 4000, TimeSec: 45},
	"coder":      {TokensIn: 6000, TokensOut: 8000, TimeSec: 60},
	"qa":         {TokensIn: 4000, TokensOut: 2000, TimeSec: 30},
	"deployer":   {TokensIn: 0, TokensOut: 0, TimeSec: 30},
	"manager":    {TokensIn: 3000, TokensOut: 1500, TimeSec: 20},
}

// Per-million-token prices used for the cost metric.
const (
	inputPricePerMillion  = 3
	outputPricePerMillion = 15
)

// agentSectionNames label the result sections on the dashboard.
var agentSectionNames = map[string]string{
	"researcher": "Исследование",
	"writer":     "Текст и документация",
	"coder":      "Код и реализация",
	"qa":         "Контроль качества",
	"deployer":   "Деплой и публикация",
}

// WorkerResult is one accumulated worker output of a task cycle.
type WorkerResult struct {
	Agent  string `json:"agent"`
	Result string `json:"result"`
}

// ResultStep is one agent section of the structured result.
type ResultStep struct {
	Agent  string `json:"agent"`
	Label  string `json:"label"`
	Result string `json:"result"`
	CostEstimate
}

// ResultMetrics summarises the estimates of a cycle.
type ResultMetrics struct {
	TotalCost    float64 `json:"total_cost"`
	TotalTokens  int     `json:"total_tokens"`
	TotalTimeSec int     `json:"total_time_sec"`
	AgentsCount  int     `json:"agents_count"`
}

// StructuredResult is the JSON envelope stored as a scheduled task result.
type StructuredResult struct {
	Version     int           `json:"version"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Steps       []ResultStep  `json:"steps"`
	UserActions []any         `json:"user_actions"`
	Metrics     ResultMetrics `json:"metrics"`
}

// BuildResult assembles the structured result of a finished cycle. When the
// manager gave no summary, one listing the contributing agents is generated.
func BuildResult(title, summary string, results []WorkerResult, userActions []any) StructuredResult {
	steps := make([]ResultStep, 0, len(results))
	for _, r := range results {
		agent := r.Agent
		if agent == "" {
			agent = "unknown"
		}
		steps = append(steps, ResultStep{
			Agent:        agent,
			Label:        sectionName(agent),
			Result:       r.Result,
			CostEstimate: AgentCostEstimates[agent],
		})
	}

	mgr := AgentCostEstimates[ManagerKey]
	cost := stepCost(mgr)
	tokens := mgr.TokensIn + mgr.TokensOut
	timeSec := mgr.TimeSec
	for _, s := range steps {
		cost += stepCost(s.CostEstimate)
		tokens += s.TokensIn + s.TokensOut
		timeSec += s.TimeSec
	}

	if summary == "" && len(results) > 0 {
		var used []string
		for _, r := range results {
			if r.Agent == "qa" {
				continue
			}
			used = append(used, sectionName(r.Agent))
		}
		summary = "Задача выполнена. Агенты: " + strings.Join(used, ", ") + "."
	}
	if userActions == nil {
		userActions = []any{}
	}

	return StructuredResult{
		Version:     ResultVersion,
		Title:       title,
		Summary:     summary,
		Steps:       steps,
		UserActions: userActions,
		Metrics: ResultMetrics{
			TotalCost:    math.Round(cost*10000) / 10000,
			TotalTokens:  tokens,
			TotalTimeSec: timeSec,
			AgentsCount:  len(steps) + 1,
		},
	}
}

// JSON renders the envelope.
func (r StructuredResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseResult decodes a stored result. It returns false for anything that is
// not a version 2 envelope, e.g. results written as plain text.
func ParseResult(s string) (StructuredResult, bool) {
	var r StructuredResult
	if err := json.Unmarshal([]byte(s), &r); err != nil || r.Version != ResultVersion {
		return StructuredResult{}, false
	}
	return r, true
}

// ActionItem is a user action that needs input from the user.
type ActionItem struct {
	Text string
}

// ActionItems selects the user actions that need input. Structured actions with
// input_required win; otherwise plain strings containing one of keywords are
// used. At most limit items are returned.
func ActionItems(actions []any, keywords []string, limit int) []ActionItem {
	var items []ActionItem
	for _, a := range actions {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if req, _ := m["input_required"].(bool); !req {
			continue
		}
		text, _ := m["text"].(string)
		items = append(items, ActionItem{Text: strings.TrimSpace(text)})
	}
	if len(items) == 0 {
		for _, a := range actions {
			s, ok := a.(string)
			if !ok {
				continue
			}
			if ContainsAny(strings.ToLower(s), keywords) {
				items = append(items, ActionItem{Text: strings.TrimSpace(s)})
			}
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ContainsAny reports whether s contains any of the (lower case) needles.
func ContainsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// TruncateEllipsis cuts s to n runes and appends an ellipsis when it was cut.
func TruncateEllipsis(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Truncate(s, n) + "…"
}

func sectionName(agent string) string {
	if name, ok := agentSectionNames[agent]; ok {
		return name
	}
	if agent == "" {
		return agent
	}
	r, size := utf8.DecodeRuneInString(agent)
	return strings.ToUpper(string(r)) + agent[size:]
}

func stepCost(c CostEstimate) float64 {
	return float64(c.TokensIn*inputPricePerMillion+c.TokensOut*outputPricePerMillion) / 1_000_000
}
