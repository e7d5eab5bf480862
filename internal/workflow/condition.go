package workflow

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Outcome labels shared by the built-in condition strategies.
const (
	OutcomeTrue    = "true"
	OutcomeFalse   = "false"
	OutcomeDefault = "default"
)

// evalFunc evaluates one condition strategy. Evaluators are pure and total:
// identical inputs produce identical outcomes and no strategy ever fails.
type evalFunc func(data map[string]interface{}, message string, ctx Context) string

// evaluators dispatches on the node's conditionType. Unknown strategies
// fall through to the default outcome rather than erroring.
var evaluators = map[string]evalFunc{
	"keyword":  evalKeyword,
	"regex":    evalRegex,
	"intent":   evalIntent,
	"variable": evalVariable,
}

// EvalCondition evaluates a condition node against the inbound message and
// the execution context, returning an outcome label used to select the
// outgoing edge. A missing conditionType defaults to keyword matching.
func EvalCondition(node *Node, message string, ctx Context) string {
	condType := "keyword"
	if v, ok := node.Data["conditionType"].(string); ok && v != "" {
		condType = v
	}

	eval, ok := evaluators[condType]
	if !ok {
		return OutcomeDefault
	}
	return eval(node.Data, message, ctx)
}

// evalKeyword returns true when the message contains any configured keyword,
// case-insensitively.
func evalKeyword(data map[string]interface{}, message string, _ Context) string {
	lowered := strings.ToLower(message)
	for _, kw := range stringList(data["keywords"]) {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return OutcomeTrue
		}
	}
	return OutcomeFalse
}

// evalRegex returns true when the pattern matches anywhere in the message,
// case-insensitively. Malformed patterns are reported at load time by
// Graph.Validate; if one still reaches evaluation it counts as no match.
func evalRegex(data map[string]interface{}, message string, _ Context) string {
	pattern, _ := data["pattern"].(string)
	if pattern == "" {
		return OutcomeFalse
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return OutcomeFalse
	}
	if re.MatchString(message) {
		return OutcomeTrue
	}
	return OutcomeFalse
}

// evalIntent returns the name of the first declared intent whose keyword
// list matches the message. Intents are declared as an ordered list of
// {name, keywords} objects so that declaration order stays authoritative.
func evalIntent(data map[string]interface{}, message string, _ Context) string {
	lowered := strings.ToLower(message)

	intents, _ := data["intents"].([]interface{})
	for _, raw := range intents {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		for _, kw := range stringList(entry["keywords"]) {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return name
			}
		}
	}
	return OutcomeDefault
}

// evalVariable returns true when the named context variable equals the
// expected value exactly. Missing variables never match.
func evalVariable(data map[string]interface{}, _ string, ctx Context) string {
	name, _ := data["variable"].(string)
	if name == "" {
		return OutcomeFalse
	}
	got, ok := ctx.Get(name)
	if !ok {
		return OutcomeFalse
	}
	if reflect.DeepEqual(got, data["value"]) {
		return OutcomeTrue
	}
	return OutcomeFalse
}

// validateCondition reports load-time configuration errors for a condition
// node. Currently only regex patterns can be rejected up front.
func validateCondition(node *Node) error {
	condType, _ := node.Data["conditionType"].(string)
	if condType != "regex" {
		return nil
	}
	pattern, _ := node.Data["pattern"].(string)
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return nil
}

// stringList coerces a JSON-decoded array into a string slice, skipping
// entries of any other type.
func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
