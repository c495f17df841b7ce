package actions

import (
	"context"
	"strings"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/logging"
)

const classifySystemPrompt = `You route user requests to agents. Reply with exactly one word:
research - the user wants information gathered or a question answered in depth
code - the user wants code written or changed
linear - the user wants a task or issue tracked
calendar - the user wants a calendar event checked or created
note - anything else worth keeping`

// Classifier decides which agent owns a piece of input text.
type Classifier struct {
	llm    llm.Client
	model  string
	logger *logging.Logger
}

// NewClassifier builds an LLM-backed classifier. An empty model falls back
// to the default classification model.
func NewClassifier(client llm.Client, model string, logger *logging.Logger) *Classifier {
	if model == "" {
		model = llm.ModelGemini25Flash
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{llm: client, model: model, logger: logger}
}

// Classify returns the action type for the input. When the model is
// unavailable or answers outside the known set, the keyword heuristic
// decides, falling back to note.
func (c *Classifier) Classify(ctx context.Context, userID, text string) action.Type {
	if c.llm != nil {
		resp, err := c.llm.Generate(ctx, llm.Request{
			Model:        c.model,
			SystemPrompt: classifySystemPrompt,
			Prompt:       text,
			UserID:       userID,
		})
		if err == nil {
			t := action.Type(strings.ToLower(strings.TrimSpace(resp.Text)))
			if action.IsValidType(t) {
				return t
			}
			c.logger.WithContext(ctx).WithField("answer", resp.Text).Warn("classifier answered outside the type set")
		} else {
			c.logger.WithContext(ctx).WithError(err).Warn("classifier call failed, using heuristic")
		}
	}
	return heuristicType(text)
}

var heuristicKeywords = []struct {
	t     action.Type
	words []string
}{
	{action.TypeResearch, []string{"research", "find out", "look up", "investigate", "compare", "what is", "why "}},
	{action.TypeCode, []string{"implement", "fix the", "refactor", "write a function", "add a test", "bug", "code"}},
	{action.TypeLinear, []string{"ticket", "issue", "task for", "track ", "todo", "linear"}},
	{action.TypeCalendar, []string{"schedule", "meeting", "calendar", "remind me at", "appointment", "tomorrow at"}},
}

func heuristicType(text string) action.Type {
	lower := strings.ToLower(text)
	for _, group := range heuristicKeywords {
		for _, word := range group.words {
			if strings.Contains(lower, word) {
				return group.t
			}
		}
	}
	return action.TypeNote
}
