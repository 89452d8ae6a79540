package agent

import "testing"

var knownTools = map[string]bool{
	"read_file":   true,
	"run_command": true,
}

func TestDetectPseudoCall(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"bare call", `read_file("notes.txt")`, true},
		{"call on later line", "I'll check the file:\nread_file(\"notes.txt\")", true},
		{"indented call", `  run_command("ls -la")`, true},
		{"name then arguments", "run_command ls -la", true},
		{"name-prefixed later line", "Next step:\nread_file notes.txt", true},
		{"unknown tool name", `fetch_data("x")`, false},
		{"unknown name then arguments", "fetch_data x y", false},
		{"tool name in prose", "I used read_file to check it earlier.", false},
		{"plain answer", "The file contains three entries.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, got := DetectPseudoCall(tt.text, knownTools)
			if got != tt.want {
				t.Fatalf("DetectPseudoCall(%q) = %v, want %v", tt.text, got, tt.want)
			}
			if got && det.Kind != "pseudo_call" {
				t.Errorf("unexpected kind %q", det.Kind)
			}
		})
	}
}

func TestDetectRawJSONCall(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"name and arguments", `{"name": "read_file", "arguments": {"path": "a.txt"}}`, true},
		{"tool key", `{"tool": "run_command", "arguments": {"command": "ls"}}`, true},
		{"fenced json", "```json\n{\"name\": \"read_file\", \"arguments\": {}}\n```", true},
		{"ordinary json answer", `{"result": 42}`, false},
		{"not json", "just a sentence", false},
		{"unknown name without arguments", `{"name": "nobody"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := DetectRawJSONCall(tt.text, knownTools)
			if got != tt.want {
				t.Errorf("DetectRawJSONCall(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectToolMarkup(t *testing.T) {
	det, got := DetectToolMarkup(`<tool_call>{"name": "x"}</tool_call>`, nil)
	if !got {
		t.Fatal("expected markup detection")
	}
	if det.Kind != "tool_markup" {
		t.Errorf("unexpected kind %q", det.Kind)
	}
	if _, got := DetectToolMarkup("a normal sentence with <em>markup</em>", nil); got {
		t.Error("ordinary markup must not trigger")
	}
}
