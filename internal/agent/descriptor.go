package agent

// KnowledgeDescriptor summarizes an attached knowledge base.
type KnowledgeDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxResults  int    `json:"max_results"`
}

// Descriptor is the public view of an agent served over HTTP.
type Descriptor struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Model       string               `json:"model"`
	Markdown    bool                 `json:"markdown"`
	HistoryRuns int                  `json:"history_runs"`
	Tools       []string             `json:"tools"`
	Knowledge   *KnowledgeDescriptor `json:"knowledge,omitempty"`
}

// Describe returns the agent's descriptor.
func (a *Agent) Describe() Descriptor {
	d := Descriptor{
		ID:          a.cfg.ID,
		Name:        a.cfg.Name,
		Description: a.cfg.Description,
		Model:       a.provider.ModelName(),
		Markdown:    a.cfg.Markdown,
		HistoryRuns: a.cfg.HistoryRuns,
		Tools:       a.tools.Names(),
	}
	if kb := a.cfg.Knowledge; kb != nil {
		d.Knowledge = &KnowledgeDescriptor{
			Name:        kb.Name(),
			Description: kb.Description(),
			MaxResults:  kb.MaxResults(),
		}
	}
	return d
}
