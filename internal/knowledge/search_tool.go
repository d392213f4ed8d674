package knowledge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flemzord/relaybot/internal/tool"
)

// SearchToolName is the name the model uses to query the knowledge base.
const SearchToolName = "search_knowledge_base"

type reference struct {
	Name     string            `json:"name"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"meta_data,omitempty"`
}

// FormatReferences renders matches as the JSON list handed to the model.
func FormatReferences(matches []Match) string {
	refs := make([]reference, len(matches))
	for i, m := range matches {
		refs[i] = reference{Name: m.Document, Content: m.Content, Metadata: m.Metadata}
	}
	data, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

type searchTool struct {
	kb *Knowledge
}

// NewSearchTool exposes kb to the model as a tool.
func NewSearchTool(kb *Knowledge) tool.Tool {
	return &searchTool{kb: kb}
}

func (t *searchTool) Name() string { return SearchToolName }

func (t *searchTool) Description() string {
	desc := "Search the knowledge base for information relevant to a query."
	if d := t.kb.Description(); d != "" {
		desc += " " + d
	}
	return desc
}

func (t *searchTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The query to search for."}},"required":["query"]}`)
}

func (t *searchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := tool.DecodeArgs(args, &in); err != nil {
		return tool.Output{}, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return tool.ErrorOutput("query is required"), nil
	}

	matches, err := t.kb.Search(ctx, in.Query, 0)
	if err != nil {
		return tool.Output{}, err
	}
	if len(matches) == 0 {
		return tool.Output{Content: "No documents found"}, nil
	}
	return tool.Output{Content: FormatReferences(matches)}, nil
}
