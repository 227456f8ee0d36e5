// ABOUTME: Participant types for team runs
// ABOUTME: Assistant replies via a model client, UserProxy relays human input

package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/parley/internal/llm"
)

// Participant is one member of a team. Reply produces the participant's next
// message given the conversation so far.
type Participant interface {
	Name() string
	Reply(ctx context.Context, transcript []Message) (string, error)
}

// Assistant is an AI participant backed by a model client.
type Assistant struct {
	name          string
	systemMessage string
	model         string
	client        llm.Client
}

// NewAssistant creates an assistant participant.
func NewAssistant(name, systemMessage, model string, client llm.Client) *Assistant {
	return &Assistant{
		name:          name,
		systemMessage: systemMessage,
		model:         model,
		client:        client,
	}
}

// Name returns the participant name.
func (a *Assistant) Name() string { return a.name }

// Reply asks the model for this assistant's next message. Messages from other
// participants are presented as user turns prefixed with their source so the
// model can tell speakers apart.
func (a *Assistant) Reply(ctx context.Context, transcript []Message) (string, error) {
	messages := make([]llm.ChatMessage, 0, len(transcript))
	for _, m := range transcript {
		if m.Source == a.name {
			messages = append(messages, llm.ChatMessage{Role: llm.RoleAssistant, Content: m.Content})
			continue
		}
		messages = append(messages, llm.ChatMessage{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("%s: %s", m.Source, m.Content),
		})
	}

	resp, err := a.client.Chat(ctx, llm.ChatRequest{
		Model:    a.model,
		System:   a.systemMessage,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("assistant %s: %w", a.name, err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("assistant %s: empty reply", a.name)
	}
	return reply, nil
}

// InputFunc supplies the user's next message when it is the proxy's turn.
// It blocks until input is available or the run is terminated, in which case
// it returns ErrTerminated.
type InputFunc func(ctx context.Context) (string, error)

// UserProxy is the human's seat at the table. The team emits an input-request
// event before calling its input func.
type UserProxy struct {
	name  string
	input InputFunc
}

// NewUserProxy creates a user-proxy participant.
func NewUserProxy(name string, input InputFunc) *UserProxy {
	return &UserProxy{name: name, input: input}
}

// Name returns the participant name.
func (u *UserProxy) Name() string { return u.name }

// Reply blocks on the input func until the user submits a message.
func (u *UserProxy) Reply(ctx context.Context, _ []Message) (string, error) {
	return u.input(ctx)
}
