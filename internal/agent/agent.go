// Package agent builds the task-specific conversational agents: chat with
// retrieval context and an optional note-creation tool, auto-tagging,
// auto-emoji, writing assistance, and auto-commenting. Agents are stateless
// between invocations; the caller supplies any conversation history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/notify"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/retrieval"
)

// chatPrompt establishes the chat agent's persona. The current date is
// prepended at invocation time.
const chatPrompt = "You are a versatile AI assistant who can:\n" +
	"1. Answer questions and explain concepts\n" +
	"2. Provide suggestions and analysis\n" +
	"3. Help with planning and organizing ideas\n" +
	"4. Assist with content creation and editing\n" +
	"5. Perform basic calculations and reasoning\n\n" +
	"Always respond in the user's language.\n" +
	"Maintain a friendly and professional conversational tone."

// tagPromptFormat is the tag agent's system prompt; the verb takes the
// comma-joined candidate tag vocabulary.
const tagPromptFormat = `You are a precision tag classification expert. Rules:
1. Select 5 most relevant tags from existing list
2. Create new tags in #category/subcategory format if needed
3. Return comma-separated tags only

Available tags: %s
Example: #technology/ai, #development/backend`

// emojiPrompt is the emoji agent's system prompt.
const emojiPrompt = `You are an emoji recommendation expert. Rules:
1. Analyze content theme and emotion
2. Return 4-10 comma-separated emojis
3. Use 💻🔧 for tech content, 😊🎉 for emotional content
Example: 🚀,💻,🔧,📱`

// commentPrompt is the comment agent's system prompt.
const commentPrompt = `You are Blinko Comment Assistant. Guidelines:
1. Use Markdown formatting
2. Include 1-2 relevant emojis
3. Maintain professional tone
4. Keep responses concise (50-150 words)
5. Match user's language

Structure:
1. Start with greeting
2. Provide structured insights
3. End with conclusion`

// WritingMode selects the writing agent's instruction template.
type WritingMode string

const (
	// WritingExpand adds details and examples to the user's draft.
	WritingExpand WritingMode = "expand"
	// WritingPolish optimizes wording while keeping the core meaning.
	WritingPolish WritingMode = "polish"
	// WritingCustom is the general-purpose writing mode.
	WritingCustom WritingMode = "custom"
)

// writingPrompts maps each writing mode to its instruction template.
var writingPrompts = map[WritingMode]string{
	WritingExpand: `You are a writing expansion assistant. Requirements:
1. Use same language as input
2. Add details and examples
3. Maintain original style`,
	WritingPolish: `You are a text polishing expert. Requirements:
1. Optimize wording and sentence structure
2. Keep core meaning
3. Use Markdown formatting`,
	WritingCustom: `You are a multi-purpose writing assistant. Requirements:
1. Create content as needed
2. Follow technical documentation standards`,
}

// aiAuthorName is the synthetic author comments are attributed to.
const aiAuthorName = "Blinko AI"

// Orchestrator constructs and runs the agents. It holds no session state;
// safe for concurrent use.
type Orchestrator struct {
	factory  provider.Bundler
	ranker   *retrieval.Ranker
	store    note.Store
	notifier notify.Notifier
	clk      clock.Clock
}

// New constructs an Orchestrator from the provided dependencies.
func New(factory provider.Bundler, ranker *retrieval.Ranker, store note.Store, notifier notify.Notifier, clk clock.Clock) (*Orchestrator, error) {
	if factory == nil {
		return nil, fmt.Errorf("agent: factory must not be nil")
	}
	if ranker == nil {
		return nil, fmt.Errorf("agent: ranker must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("agent: store must not be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("agent: notifier must not be nil")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		factory:  factory,
		ranker:   ranker,
		store:    store,
		notifier: notifier,
		clk:      clk,
	}, nil
}

// Chat answers a question grounded in the owner's notes. The conversation is
// the prior history; the question is appended as the final user message, and
// retrieved note content is injected as a system message so answers cite the
// user's own notes. Tokens are streamed to w as they arrive. Returns the
// notes used as context.
func (o *Orchestrator) Chat(ctx context.Context, conversation []*schema.Message, question string, ownerID int64, withTools bool, w io.Writer) ([]retrieval.Result, error) {
	bundle, err := o.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}

	results, err := o.ranker.RetrieveForChat(ctx, question, ownerID)
	if err != nil {
		return nil, fmt.Errorf("agent: retrieve chat context: %w", err)
	}
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Note.Content)
	}

	system := "Today is " + o.clk.Now().Format("2006-01-02 15:04:05") + "\n" + chatPrompt
	messages := make([]*schema.Message, 0, len(conversation)+3)
	messages = append(messages, schema.SystemMessage(system))
	messages = append(messages, conversation...)
	messages = append(messages, schema.UserMessage(question))
	messages = append(messages, schema.SystemMessage(
		"This is the note content which search from vector database: "+strings.Join(contents, "\n")))

	var sr *schema.StreamReader[*schema.Message]
	if withTools {
		reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: bundle.ChatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: []tool.BaseTool{newCreateNoteTool(o.store, ownerID)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("agent: create react agent: %w", err)
		}
		sr, err = reactAgent.Stream(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("agent: chat stream: %w", err)
		}
	} else {
		sr, err = bundle.ChatModel.Stream(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("agent: chat stream: %w", err)
		}
	}
	defer sr.Close()

	if err := drain(sr, w); err != nil {
		return nil, err
	}
	return results, nil
}

// AutoTag suggests tags for content given the existing tag vocabulary.
// Returns the trimmed, comma-split tag list.
func (o *Orchestrator) AutoTag(ctx context.Context, content string, existing []string) ([]string, error) {
	bundle, err := o.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := bundle.ChatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(tagPromptFormat, strings.Join(existing, ", "))),
		schema.UserMessage(content),
		schema.UserMessage("Please select and suggest appropriate tags for the above content"),
	})
	if err != nil {
		return nil, fmt.Errorf("agent: tag generate: %w", err)
	}
	return splitList(msg.Content), nil
}

// AutoEmoji suggests 4-10 emojis matching the content's tone.
func (o *Orchestrator) AutoEmoji(ctx context.Context, content string) ([]string, error) {
	bundle, err := o.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := bundle.ChatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(emojiPrompt),
		schema.UserMessage(content),
		schema.UserMessage("Please select and suggest appropriate emojis for the above content"),
	})
	if err != nil {
		return nil, fmt.Errorf("agent: emoji generate: %w", err)
	}
	return splitList(msg.Content), nil
}

// Writing runs the writing assistant in the given mode, streaming output to
// w. content is the user's existing note text, question the instruction.
func (o *Orchestrator) Writing(ctx context.Context, mode WritingMode, question, content string, w io.Writer) error {
	prompt, ok := writingPrompts[mode]
	if !ok {
		return fmt.Errorf("agent: unknown writing mode %q — valid values: expand, polish, custom", mode)
	}
	bundle, err := o.factory.Bundle(ctx)
	if err != nil {
		return err
	}
	sr, err := bundle.ChatModel.Stream(ctx, []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(question),
		schema.SystemMessage("This is the user's note content: " + content),
	})
	if err != nil {
		return fmt.Errorf("agent: writing stream: %w", err)
	}
	defer sr.Close()
	return drain(sr, w)
}

// Comment generates a short markdown comment on the note, persists it under
// the synthetic AI author, and dispatches a notification to the note's owner.
func (o *Orchestrator) Comment(ctx context.Context, noteID int64, content string) (*note.Comment, error) {
	bundle, err := o.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	n, err := o.store.Note(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("agent: load note %d: %w", noteID, err)
	}

	msg, err := bundle.ChatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(commentPrompt),
		schema.UserMessage(content),
		schema.UserMessage("This is the note content: " + n.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("agent: comment generate: %w", err)
	}

	comment, err := o.store.CreateComment(ctx, noteID, strings.TrimSpace(msg.Content), aiAuthorName)
	if err != nil {
		return nil, fmt.Errorf("agent: persist comment: %w", err)
	}
	o.notifier.Notify(ctx, n.AccountID, notify.KindComment)
	return comment, nil
}

// drain copies streamed message content to w until the stream ends.
func drain(sr *schema.StreamReader[*schema.Message], w io.Writer) error {
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("agent: stream receive: %w", err)
		}
		if msg != nil && msg.Content != "" {
			if _, err := fmt.Fprint(w, msg.Content); err != nil {
				return fmt.Errorf("agent: write output: %w", err)
			}
		}
	}
}

// splitList splits a comma-separated model response into trimmed, non-empty
// items.
func splitList(s string) []string {
	parts := strings.Split(strings.TrimSpace(s), ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}
