// Package llmops adapts forge/llmmodel's ChatModel seam into the
// engine's Operation contract. A chat Operation threads its
// conversation through the owning Foundry's Properties store under a
// caller-chosen key, so a multi-turn exchange can be built from
// several sequential chat steps in the same workflow, each one
// picking up where the last left off.
package llmops

import (
	"context"

	"github.com/forgekit/forge"
	"github.com/forgekit/forge/llmmodel"
)

// ChatInput is the typed input accepted by a chat Operation: the
// messages to append to the running transcript, plus any tools the
// model may call for this turn.
type ChatInput struct {
	Messages []llmmodel.Message
	Tools    []llmmodel.ToolSpec
}

// ChatOutput is the typed output a chat Operation produces.
type ChatOutput struct {
	llmmodel.ChatOut
}

// NewChatOperation wraps chat as a non-restorable, typed Operation:
// LLM calls have no natural compensating action, so SupportsRestore is
// always false (compensation skips it, per the engine's default
// policy).
//
// On each call, the operation reads the transcript previously stored
// under transcriptKey in the Foundry's Properties (empty on the first
// turn), appends in.Messages, sends the full transcript to chat, then
// stores the transcript plus the model's reply back under
// transcriptKey for the next chat step to build on.
func NewChatOperation(id, name, transcriptKey string, chat llmmodel.ChatModel) *forge.TypedOperation[ChatInput, ChatOutput] {
	return forge.NewTypedOperation[ChatInput, ChatOutput](id, name,
		func(ctx context.Context, in ChatInput, f *forge.Foundry) (ChatOutput, error) {
			transcript := loadTranscript(f, transcriptKey)
			transcript = append(transcript, in.Messages...)

			out, err := chat.Chat(ctx, transcript, in.Tools)
			if err != nil {
				return ChatOutput{}, err
			}

			if out.Text != "" {
				transcript = append(transcript, llmmodel.Message{Role: llmmodel.RoleAssistant, Content: out.Text})
			}
			f.Properties().Set(transcriptKey, transcript)

			return ChatOutput{ChatOut: out}, nil
		},
		nil,
		nil,
	)
}

func loadTranscript(f *forge.Foundry, key string) []llmmodel.Message {
	v, ok := f.Properties().Get(key)
	if !ok {
		return nil
	}
	transcript, ok := v.([]llmmodel.Message)
	if !ok {
		return nil
	}
	return append([]llmmodel.Message(nil), transcript...)
}
