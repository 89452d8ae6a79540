package stream

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDescribeJSONError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string // substrings that must appear in the diagnosis
	}{
		{
			name: "unclosed brace",
			raw:  `{"path": "a.txt"`,
			want: []string{"1 unclosed '{'"},
		},
		{
			name: "unterminated string",
			raw:  `{"path": "a.tx`,
			want: []string{"unterminated string literal"},
		},
		{
			name: "unclosed bracket",
			raw:  `{"items": [1, 2`,
			want: []string{"unclosed '{'", "unclosed '['"},
		},
		{
			name: "syntax error has position",
			raw:  "{\n  \"a\": 1,\n}",
			want: []string{"line 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]any
			err := json.Unmarshal([]byte(tt.raw), &v)
			if err == nil {
				t.Fatalf("test input %q unexpectedly parsed", tt.raw)
			}
			got := DescribeJSONError(tt.raw, err)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("diagnosis %q missing %q", got, want)
				}
			}
		})
	}
}

func TestDelimiterBalanceIgnoresStrings(t *testing.T) {
	// Braces inside string literals must not count.
	if diag := delimiterBalance(`{"cmd": "echo {"}`); diag != "" {
		t.Errorf("balanced input reported as unbalanced: %s", diag)
	}
}

func TestOffsetToLineCol(t *testing.T) {
	line, col := offsetToLineCol("ab\ncd\nef", 7)
	if line != 3 || col != 2 {
		t.Errorf("expected line 3 col 2, got line %d col %d", line, col)
	}
}
