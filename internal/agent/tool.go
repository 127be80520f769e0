package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/blinko-space/blinko-ai/internal/note"
)

// CreateNoteTool is an Eino tool that saves a new note for the chat user.
// The agent produces the content and this tool persists it, keeping store
// access out of the LLM context.
type CreateNoteTool struct {
	store   note.Store
	ownerID int64
}

// createNoteInput is the JSON-serialisable input schema for CreateNoteTool.
type createNoteInput struct {
	// Content is the markdown body of the note to create.
	Content string `json:"content"`
}

// newCreateNoteTool constructs a CreateNoteTool bound to the chat user.
func newCreateNoteTool(store note.Store, ownerID int64) *CreateNoteTool {
	return &CreateNoteTool{store: store, ownerID: ownerID}
}

// Name returns the tool name registered with the agent.
func (t *CreateNoteTool) Name() string { return "create_note" }

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CreateNoteTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Creates a new note with the given markdown content for the current user. " +
			"Use this when the user asks to save, capture, or note something down.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"content": {
				Type:     schema.String,
				Desc:     "Markdown content of the note to create.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun persists the note and returns a confirmation for the agent.
func (t *CreateNoteTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input createNoteInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("create_note: invalid input: %w", err)
	}
	if input.Content == "" {
		return "", fmt.Errorf("create_note: content is required")
	}
	n, err := t.store.CreateNote(ctx, t.ownerID, input.Content)
	if err != nil {
		return "", fmt.Errorf("create_note: %w", err)
	}
	return fmt.Sprintf("Created note %d.", n.ID), nil
}
