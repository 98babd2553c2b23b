package llmops

import (
	"context"
	"errors"
	"testing"

	"github.com/forgekit/forge"
	"github.com/forgekit/forge/llmmodel"
)

func TestNewChatOperationDelegatesToChatModel(t *testing.T) {
	mock := &llmmodel.MockChatModel{Responses: []llmmodel.ChatOut{{Text: "hello there"}}}
	op := NewChatOperation("chat", "chat", "transcript", mock)

	out, err := op.Execute(context.Background(), ChatInput{
		Messages: []llmmodel.Message{{Role: llmmodel.RoleUser, Content: "hi"}},
	}, forge.NewFoundry())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	chatOut := out.(ChatOutput)
	if chatOut.Text != "hello there" {
		t.Fatalf("expected delegated response, got %q", chatOut.Text)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected exactly 1 delegated call, got %d", mock.CallCount())
	}
}

func TestNewChatOperationPropagatesModelError(t *testing.T) {
	mock := &llmmodel.MockChatModel{Err: errors.New("provider unavailable")}
	op := NewChatOperation("chat", "chat", "transcript", mock)

	_, err := op.Execute(context.Background(), ChatInput{}, forge.NewFoundry())
	if err == nil {
		t.Fatal("expected the model error to propagate")
	}
}

func TestNewChatOperationNeverSupportsRestore(t *testing.T) {
	mock := &llmmodel.MockChatModel{}
	op := NewChatOperation("chat", "chat", "transcript", mock)
	if op.SupportsRestore() {
		t.Fatal("expected a chat operation to never support restore")
	}
}

func TestNewChatOperationThreadsTranscriptAcrossSequentialCalls(t *testing.T) {
	mock := &llmmodel.MockChatModel{Responses: []llmmodel.ChatOut{{Text: "first reply"}, {Text: "second reply"}}}
	op := NewChatOperation("chat", "chat", "transcript", mock)
	f := forge.NewFoundry()

	if _, err := op.Execute(context.Background(), ChatInput{
		Messages: []llmmodel.Message{{Role: llmmodel.RoleUser, Content: "first question"}},
	}, f); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := op.Execute(context.Background(), ChatInput{
		Messages: []llmmodel.Message{{Role: llmmodel.RoleUser, Content: "second question"}},
	}, f); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(mock.Calls))
	}
	second := mock.Calls[1].Messages
	want := []string{"first question", "first reply", "second question"}
	if len(second) != len(want) {
		t.Fatalf("expected the second call to carry the full transcript, got %+v", second)
	}
	for i, msg := range second {
		if msg.Content != want[i] {
			t.Fatalf("transcript[%d]: expected %q, got %q", i, want[i], msg.Content)
		}
	}
}

func TestNewChatOperationOmitsEmptyReplyFromTranscript(t *testing.T) {
	mock := &llmmodel.MockChatModel{Responses: []llmmodel.ChatOut{{ToolCalls: []llmmodel.ToolCall{{Name: "lookup"}}}, {Text: "done"}}}
	op := NewChatOperation("chat", "chat", "transcript", mock)
	f := forge.NewFoundry()

	if _, err := op.Execute(context.Background(), ChatInput{
		Messages: []llmmodel.Message{{Role: llmmodel.RoleUser, Content: "question"}},
	}, f); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := op.Execute(context.Background(), ChatInput{}, f); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	second := mock.Calls[1].Messages
	if len(second) != 1 || second[0].Content != "question" {
		t.Fatalf("expected a tool-only reply to not be appended to the transcript, got %+v", second)
	}
}
