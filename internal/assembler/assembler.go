// Package assembler builds the planning prompt from persona, capability
// catalog, conversation history, retrieved knowledge, and active grants.
// Each section degrades independently; assembly itself never fails.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/knowledge"
	"github.com/stewardhq/steward/internal/vault"
)

// CatalogSource renders the available tools and capabilities.
type CatalogSource interface {
	CatalogText() string
}

// HistorySource renders recent conversation turns.
type HistorySource interface {
	Render(userID string, n int) string
}

// KnowledgeSource retrieves stored facts relevant to the utterance.
type KnowledgeSource interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Fact, error)
}

// ConsentSource lists the user's active grants.
type ConsentSource interface {
	ListConsents(userID string) []vault.ConsentGrant
}

const planSchemaPreamble = `Respond with a single JSON object and nothing else:
{
  "intent": "question|system_action|email|calendar|learn|control|search|general|multi_step",
  "confidence": 0.0-1.0,
  "tool_calls": [
    {
      "tool_id": "<tool id from the catalog>",
      "capability": "<capability name>",
      "parameters": {},
      "reasoning": "<why this call>",
      "risk_level": "safe|low|medium|high|critical"
    }
  ],
  "narration_message": "<what to tell the user>",
  "needs_more_info": false,
  "followup_question": ""
}
Use an empty tool_calls array for purely conversational requests.
If you lack information to act, set needs_more_info and ask a followup_question.`

// Assembler composes planning prompts.
type Assembler struct {
	persona       string
	historyTurns  int
	knowledgeTopK int
	catalog       CatalogSource
	history       HistorySource
	knowledge     KnowledgeSource
	consents      ConsentSource
}

func New(cfg config.AssemblerConfig, catalog CatalogSource, history HistorySource, knowledge KnowledgeSource, consents ConsentSource) *Assembler {
	return &Assembler{
		persona:       cfg.Persona,
		historyTurns:  cfg.HistoryTurns,
		knowledgeTopK: cfg.KnowledgeTopK,
		catalog:       catalog,
		history:       history,
		knowledge:     knowledge,
		consents:      consents,
	}
}

// Assemble builds the full planning prompt for an utterance. Sections
// whose collaborators are missing or erroring are simply omitted.
func (a *Assembler) Assemble(ctx context.Context, userID, utterance string) string {
	var sections []string

	sections = append(sections, a.persona, planSchemaPreamble)

	if a.catalog != nil {
		if catalog := a.catalog.CatalogText(); catalog != "" {
			sections = append(sections, "## Available tools\n\n"+catalog)
		}
	}

	if a.knowledge != nil && a.knowledgeTopK > 0 {
		facts, err := a.knowledge.Search(ctx, utterance, a.knowledgeTopK)
		if err != nil {
			slog.Debug("Knowledge search failed, omitting section", "error", err)
		} else if len(facts) > 0 {
			var b strings.Builder
			b.WriteString("## Relevant knowledge\n")
			for _, fact := range facts {
				fmt.Fprintf(&b, "- %s\n", fact.Content)
			}
			sections = append(sections, strings.TrimRight(b.String(), "\n"))
		}
	}

	if a.consents != nil {
		if grants := a.consents.ListConsents(userID); len(grants) > 0 {
			var b strings.Builder
			b.WriteString("## Pre-approved actions\n")
			for _, grant := range grants {
				fmt.Fprintf(&b, "- %s.%s\n", grant.ToolID, grant.Capability)
			}
			sections = append(sections, strings.TrimRight(b.String(), "\n"))
		}
	}

	if a.history != nil {
		if rendered := a.history.Render(userID, a.historyTurns); rendered != "" {
			sections = append(sections, "## Recent conversation\n\n"+rendered)
		}
	}

	sections = append(sections, "## Request\n\n"+utterance)

	return strings.Join(sections, "\n\n")
}
