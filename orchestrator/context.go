package orchestrator

import (
	"log"
	"sort"
	"strings"
)

// resultKeyPriority is the fixed preference order for picking the
// canonical result key out of a step's data.
var resultKeyPriority = []string{"email", "event_id", "contact", "meeting_id"}

// identifierParams are checked in order to find the value that
// identifies one invocation (so two lookups of different people land
// under different scoped keys).
var identifierParams = []string{"query", "name", "attendee", "title", "to", "email"}

// planContext carries values produced by earlier steps into later
// ones. It is private to one plan execution and discarded afterwards.
type planContext struct {
	values map[string]any
}

func newPlanContext() *planContext {
	return &planContext{values: make(map[string]any)}
}

// resolve replaces "$agent.key" placeholder strings in the parameter
// tree with context values. Unresolved placeholders keep their literal
// text so a dependent step fails visibly instead of silently losing a
// parameter.
func (pc *planContext) resolve(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = pc.resolveValue(v)
	}
	return out
}

func (pc *planContext) resolveValue(v any) any {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "$") {
			return val
		}
		key := strings.TrimPrefix(val, "$")
		if resolved, ok := pc.values[key]; ok {
			return resolved
		}
		log.Printf("[Orchestrator] placeholder %q unresolved, using literal", val)
		return val
	case map[string]any:
		return pc.resolve(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = pc.resolveValue(item)
		}
		return out
	default:
		return v
	}
}

// record publishes a step's canonical result into the context under a
// scoped key derived from the invocation's identifying parameter, and
// under the generic "<agent>.<key>" form when that is still unclaimed.
func (pc *planContext) record(agentName string, params, data map[string]any) {
	if len(data) == 0 {
		return
	}
	key, value := canonicalResult(data)

	if id := normalizeIdentifier(identifierFrom(params)); id != "" {
		pc.values[agentName+"."+id+"."+key] = value
	}
	generic := agentName + "." + key
	if _, claimed := pc.values[generic]; !claimed {
		pc.values[generic] = value
	}
}

// canonicalResult picks the step's primary result: the first priority
// key present, else the lexicographically smallest key so the choice
// is deterministic.
func canonicalResult(data map[string]any) (string, any) {
	for _, key := range resultKeyPriority {
		if value, ok := data[key]; ok {
			return key, value
		}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], data[keys[0]]
}

func identifierFrom(params map[string]any) string {
	for _, name := range identifierParams {
		if v, ok := params[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// normalizeIdentifier lowercases and strips everything outside [a-z0-9].
// Distinct identifiers can normalize identically; the scoped key is
// then overwritten by the later step.
func normalizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
