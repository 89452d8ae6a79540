// Package stream implements the SSE transport client for the completion
// endpoint and the assembler that rebuilds text or tool invocations from
// fragmented streaming deltas.
package stream

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/klubi/golem/pkg/api"
)

// Kind classifies a finished response.
type Kind string

const (
	KindText      Kind = "text"
	KindToolCalls Kind = "tool_calls"
)

const dataPrefix = "data: "
const doneSentinel = "[DONE]"

// fragment accumulates one in-progress tool invocation during streaming.
// The id is overwritten if resent; name and argument text grow by
// concatenation and the argument buffer is never parsed before Finalize.
type fragment struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// DroppedCall records a tool call whose accumulated argument text did not
// parse as JSON. The call is dropped, never guessed at.
type DroppedCall struct {
	Index     int
	Name      string
	Raw       string
	Diagnosis string
}

// Result is the finalized classification of one streamed response.
type Result struct {
	Kind    Kind
	Text    string
	Calls   []api.ToolCall
	Dropped []DroppedCall
}

// Assembler consumes raw SSE lines and incrementally reassembles either
// free text or one-or-more concurrently built tool calls. Once any
// tool-call fragment has been observed, later content deltas are diverted
// to a diagnostic buffer instead of the printable text: a response is
// either the model talking or the model acting, and mixing the two is an
// error condition to surface, not output to show.
type Assembler struct {
	text        strings.Builder
	discarded   strings.Builder
	fragments   map[int]*fragment
	sawToolCall bool
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{fragments: make(map[int]*fragment)}
}

// ProcessLine handles a single raw SSE line. It returns the printable
// text delta (empty for non-content lines) and whether the stream's
// termination sentinel was seen. Lines without a data payload, payloads
// that are not valid JSON, and payloads without choices are ignored.
func (a *Assembler) ProcessLine(line string) (delta string, done bool) {
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line, dataPrefix)
	if strings.TrimSpace(payload) == doneSentinel {
		return "", true
	}

	var chunk api.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}

	d := chunk.Choices[0].Delta

	if len(d.ToolCalls) > 0 {
		a.sawToolCall = true
		for _, fc := range d.ToolCalls {
			f, ok := a.fragments[fc.Index]
			if !ok {
				f = &fragment{}
				a.fragments[fc.Index] = f
			}
			if fc.ID != "" {
				f.id = fc.ID
			}
			f.name.WriteString(fc.Function.Name)
			f.args.WriteString(fc.Function.Arguments)
		}
	}

	if d.Content != "" {
		if a.sawToolCall {
			a.discarded.WriteString(d.Content)
			return "", false
		}
		a.text.WriteString(d.Content)
		return d.Content, false
	}

	return "", false
}

// Finalize classifies the accumulated response. For a tool-call response
// each fragment's argument buffer is parsed in ascending index order;
// buffers that fail to parse are reported in Dropped with positional
// diagnostics. A KindToolCalls result with zero parsed Calls is the
// caller's signal of a hard parse failure, distinct from "no tool calls
// requested".
func (a *Assembler) Finalize() Result {
	if !a.sawToolCall {
		return Result{Kind: KindText, Text: a.text.String()}
	}

	indexes := make([]int, 0, len(a.fragments))
	for idx := range a.fragments {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	res := Result{Kind: KindToolCalls}
	for _, idx := range indexes {
		f := a.fragments[idx]
		raw := f.args.String()
		var args map[string]any
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			res.Dropped = append(res.Dropped, DroppedCall{
				Index:     idx,
				Name:      f.name.String(),
				Raw:       raw,
				Diagnosis: DescribeJSONError(raw, err),
			})
			continue
		}
		res.Calls = append(res.Calls, api.ToolCall{
			ID:        f.id,
			Name:      f.name.String(),
			Arguments: args,
		})
	}
	return res
}

// DiscardedText returns content deltas that arrived after the first
// tool-call fragment. Diagnostic only; never shown as output.
func (a *Assembler) DiscardedText() string {
	return a.discarded.String()
}

// Reset clears all accumulated state so the assembler can be reused for
// the next response. No state leaks across turns.
func (a *Assembler) Reset() {
	a.text.Reset()
	a.discarded.Reset()
	a.fragments = make(map[int]*fragment)
	a.sawToolCall = false
}
