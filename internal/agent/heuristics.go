package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Detection is the verdict of one text heuristic: what pattern fired
// and the corrective guidance to send back to the model.
type Detection struct {
	Kind     string
	Guidance string
}

// Heuristic inspects an assistant text response for patterns that mean
// the model tried to call a tool in prose instead of through the tool
// interface. known maps the currently registered tool names.
type Heuristic func(text string, known map[string]bool) (Detection, bool)

// defaultHeuristics returns the detectors applied to every plain-text
// response, in order. The first match wins.
func defaultHeuristics() []Heuristic {
	return []Heuristic{
		DetectToolMarkup,
		DetectRawJSONCall,
		DetectPseudoCall,
	}
}

var markupPatterns = []string{
	"<tool_call>", "</tool_call>",
	"<function_call>", "</function_call>",
	"<|tool_call|>",
	"[TOOL_CALL]",
}

// DetectToolMarkup fires on chat-template tool markers leaking into
// plain text, which means the provider failed to parse the call.
func DetectToolMarkup(text string, _ map[string]bool) (Detection, bool) {
	for _, marker := range markupPatterns {
		if strings.Contains(text, marker) {
			return Detection{
				Kind: "tool_markup",
				Guidance: "Your response contained raw tool-call markup (" + marker + ") instead of an " +
					"actual tool call. Use the tool-calling interface directly; do not write the markup as text.",
			}, true
		}
	}
	return Detection{}, false
}

// DetectRawJSONCall fires when the whole response parses as a JSON
// object shaped like a tool invocation.
func DetectRawJSONCall(text string, known map[string]bool) (Detection, bool) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, "{") {
		return Detection{}, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return Detection{}, false
	}

	name := ""
	for _, key := range []string{"name", "tool", "function"} {
		if v, ok := obj[key].(string); ok {
			name = v
			break
		}
	}
	_, hasArgs := obj["arguments"]
	if name == "" || (!known[name] && !hasArgs) {
		return Detection{}, false
	}
	return Detection{
		Kind: "raw_json_call",
		Guidance: fmt.Sprintf("You wrote a JSON object describing a call to '%s' as plain text. "+
			"That does not execute anything. Invoke the tool through the tool-calling interface instead.", name),
	}, true
}

// pseudoCallRE matches a line that starts with an identifier followed by
// an opening parenthesis, the shape of a written-out function call.
var pseudoCallRE = regexp.MustCompile(`^\s*([a-z][a-z0-9_]*)\s*\(`)

// DetectPseudoCall fires when a line of the response spells out a call
// to a registered tool, either as `read_file("notes.txt")` or as the
// bare tool name followed by its arguments, e.g. `read_file notes.txt`.
func DetectPseudoCall(text string, known map[string]bool) (Detection, bool) {
	for _, line := range strings.Split(text, "\n") {
		name := ""
		if m := pseudoCallRE.FindStringSubmatch(line); m != nil && known[m[1]] {
			name = m[1]
		} else if fields := strings.Fields(line); len(fields) > 1 && known[fields[0]] {
			name = fields[0]
		}
		if name == "" {
			continue
		}
		return Detection{
			Kind: "pseudo_call",
			Guidance: fmt.Sprintf("You wrote a call to '%s' as text instead of calling the tool. "+
				"Written-out calls do not execute. Use the tool-calling interface to actually invoke '%s'.",
				name, name),
		}, true
	}
	return Detection{}, false
}
