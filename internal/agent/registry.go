package agent

import "github.com/fairyhunter13/taskexec-worker/internal/domain"

// Registry maps each known agent_type to its executor and holds the
// generic fallback for anything else. It's built once at startup from
// Deps and handed to the dispatcher.
type Registry struct {
	agents  map[domain.AgentType]Agent
	generic Agent
}

// NewRegistry wires every built-in agent from a single Deps bundle.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		agents: map[domain.AgentType]Agent{
			domain.AgentScraper:     NewScraperAgent(deps.AI),
			domain.AgentSummarizer:  NewSummarizerAgent(deps.AI),
			domain.AgentAnalyzer:    NewAnalyzerAgent(deps.AI),
			domain.AgentValidator:   NewValidatorAgent(deps.AI),
			domain.AgentTransformer: NewTransformerAgent(deps.AI),
			domain.AgentChart:       NewChartAgent(deps.AI),
			domain.AgentDesigner:    NewDesignerAgent(deps.Storage, deps.TaskStore),
			domain.AgentNotifier:    NewNotifierAgent(deps),
			domain.AgentReviewer:    NewReviewerAgent(deps),
		},
		generic: NewGenericAgent(deps.AI),
	}
}

// Resolve returns the executor for kind, falling back to the generic AI
// executor for any kind the registry doesn't recognize — including the
// empty AgentType and any custom value the orchestrator sends.
func (r *Registry) Resolve(kind domain.AgentType) Agent {
	if a, ok := r.agents[kind]; ok {
		return a
	}
	return r.generic
}
