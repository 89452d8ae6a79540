package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// ddgResponse is the subset of the DuckDuckGo instant-answer payload we
// render.
type ddgResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	DefinitionURL string `json:"DefinitionURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// WebSearch returns the web_search tool, backed by the DuckDuckGo
// instant-answer API.
func WebSearch() tools.Tool {
	client := &http.Client{Timeout: 10 * time.Second}
	return tools.Func{
		Def: api.NewDefinition(
			"web_search",
			"Search the web and return a short summary with source links.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query",
					},
				},
				"required": []any{"query"},
			},
		),
		Fn: func(ctx context.Context, args map[string]any) (string, bool, error) {
			query := strings.TrimSpace(stringArg(args, "query"))
			if query == "" {
				return "Error: query is required", false, nil
			}
			return search(ctx, client, query), false, nil
		},
	}
}

func search(ctx context.Context, client *http.Client, query string) string {
	endpoint := "https://api.duckduckgo.com/?" + url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Sprintf("Error building search request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: search request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("Error reading search response: %v", err)
	}

	var ddg ddgResponse
	if err := json.Unmarshal(body, &ddg); err != nil {
		return fmt.Sprintf("Error parsing search response: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n", query)

	switch {
	case ddg.Answer != "":
		fmt.Fprintf(&b, "\nAnswer: %s\n", ddg.Answer)
	case ddg.AbstractText != "":
		fmt.Fprintf(&b, "\n%s\nSource: %s\n", ddg.AbstractText, ddg.AbstractURL)
	case ddg.Definition != "":
		fmt.Fprintf(&b, "\nDefinition: %s\nSource: %s\n", ddg.Definition, ddg.DefinitionURL)
	}

	count := 0
	for _, topic := range ddg.RelatedTopics {
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		if count == 0 {
			b.WriteString("\nRelated:\n")
		}
		fmt.Fprintf(&b, "- %s (%s)\n", topic.Text, topic.FirstURL)
		count++
		if count >= 5 {
			break
		}
	}

	if ddg.Answer == "" && ddg.AbstractText == "" && ddg.Definition == "" && count == 0 {
		fmt.Fprintf(&b, "\nNo instant answer found. Try a more specific query, or fetch https://duckduckgo.com/?q=%s directly.\n",
			url.QueryEscape(query))
	}
	return b.String()
}
