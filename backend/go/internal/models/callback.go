package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPayload is wrapped by every callback decoding failure.
var ErrInvalidPayload = errors.New("invalid callback payload")

// DefaultQuestXP is used when xp_reward is absent or not a number.
const DefaultQuestXP = 10

// CallbackPayload is a status event posted by the workflow engine.
//
// Decoding rules:
//   - the document must be a JSON object and agent must be a non-empty string;
//   - status, when present, must be one of the AgentStatus values;
//   - progress accepts an integral number or a numeric string and is clamped
//     to 0..100; anything else, fractions included, leaves Progress nil;
//   - user_actions accepts an array or a JSON-encoded array string;
//   - lessons_learned accepts a string or an array of strings;
//   - xp_reward falls back to DefaultQuestXP when not numeric;
//   - taskId accepts a number or a numeric string.
//
// Other loosely typed optional fields are ignored rather than rejected.
type CallbackPayload struct {
	Agent          string
	Status         AgentStatus
	Task           *string
	Progress       *int
	Message        string
	Title          string
	UserActions    []any
	LessonsLearned []string
	ErrorType      string
	ErrorDetail    string
	QuestType      string
	QuestTitle     string
	QuestData      map[string]any
	XPReward       int
	TaskID         *int64
}

// UnmarshalJSON applies the decoding rules documented on CallbackPayload.
func (p *CallbackPayload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := CallbackPayload{XPReward: DefaultQuestXP}

	agent, ok := rawString(raw["agent"])
	if !ok || strings.TrimSpace(agent) == "" {
		return fmt.Errorf("%w: agent is required", ErrInvalidPayload)
	}
	out.Agent = strings.TrimSpace(agent)

	if v, present := raw["status"]; present && !isNull(v) {
		s, ok := rawString(v)
		if !ok {
			return fmt.Errorf("%w: status must be a string", ErrInvalidPayload)
		}
		st := AgentStatus(strings.TrimSpace(s))
		if st != "" && !st.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, s)
		}
		out.Status = st
	}

	if s, ok := rawString(raw["task"]); ok {
		out.Task = &s
	}
	if n, ok := rawInt(raw["progress"]); ok {
		n = max(0, min(100, n))
		out.Progress = &n
	}
	out.Message, _ = rawString(raw["message"])
	out.Message = strings.TrimSpace(out.Message)
	out.Title, _ = rawString(raw["title"])
	out.Title = strings.TrimSpace(out.Title)
	out.UserActions = decodeUserActions(raw["user_actions"])
	out.LessonsLearned = decodeLessons(raw["lessons_learned"])
	out.ErrorType, _ = rawString(raw["error_type"])
	out.ErrorDetail, _ = rawString(raw["error_detail"])
	out.QuestType, _ = rawString(raw["quest_type"])
	out.QuestTitle, _ = rawString(raw["quest_title"])
	if v, ok := raw["quest_data"]; ok {
		var m map[string]any
		if json.Unmarshal(v, &m) == nil {
			out.QuestData = m
		}
	}
	if n, ok := rawInt(raw["xp_reward"]); ok {
		out.XPReward = n
	}
	taskRaw := raw["taskId"]
	if taskRaw == nil {
		taskRaw = raw["task_id"]
	}
	if n, ok := rawInt(taskRaw); ok && n > 0 {
		id := int64(n)
		out.TaskID = &id
	}

	*p = out
	return nil
}

// IsManager reports whether the event comes from the orchestrating agent.
func (p CallbackPayload) IsManager() bool {
	return p.Agent == ManagerKey
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func rawString(v json.RawMessage) (string, bool) {
	if v == nil || isNull(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func rawInt(v json.RawMessage) (int, bool) {
	if v == nil || isNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func decodeUserActions(v json.RawMessage) []any {
	if v == nil || isNull(v) {
		return nil
	}
	var list []any
	if err := json.Unmarshal(v, &list); err == nil {
		return list
	}
	if s, ok := rawString(v); ok {
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return list
		}
	}
	return nil
}

func decodeLessons(v json.RawMessage) []string {
	if v == nil || isNull(v) {
		return nil
	}
	if s, ok := rawString(v); ok {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}
	var list []any
	if err := json.Unmarshal(v, &list); err != nil {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
