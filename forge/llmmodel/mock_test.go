package llmmodel

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModelCyclesThroughResponsesThenRepeatsLast(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: "first"}, {Text: "second"}}}

	for _, want := range []string{"first", "second", "second", "second"} {
		out, err := mock.Chat(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		if out.Text != want {
			t.Fatalf("expected %q, got %q", want, out.Text)
		}
	}
	if mock.CallCount() != 4 {
		t.Fatalf("expected 4 recorded calls, got %d", mock.CallCount())
	}
}

func TestMockChatModelReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	mock := &MockChatModel{Err: wantErr}

	_, err := mock.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected the failing call to still be recorded, got %d", mock.CallCount())
	}
}

func TestMockChatModelRecordsCallHistory(t *testing.T) {
	mock := &MockChatModel{}
	tools := []ToolSpec{{Name: "lookup"}}
	messages := []Message{{Role: RoleUser, Content: "hi"}}

	if _, err := mock.Chat(context.Background(), messages, tools); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(mock.Calls) != 1 || mock.Calls[0].Messages[0].Content != "hi" || mock.Calls[0].Tools[0].Name != "lookup" {
		t.Fatalf("expected call history to capture messages and tools, got %+v", mock.Calls)
	}
}

func TestMockChatModelResetClearsHistoryAndIndex(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: "a"}, {Text: "b"}}}
	mock.Chat(context.Background(), nil, nil)
	mock.Chat(context.Background(), nil, nil)

	mock.Reset()
	if mock.CallCount() != 0 {
		t.Fatalf("expected call count reset to 0, got %d", mock.CallCount())
	}

	out, err := mock.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out.Text != "a" {
		t.Fatalf("expected response index to rewind to the first response, got %q", out.Text)
	}
}

func TestMockChatModelRejectsCancelledContextBeforeRecording(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockChatModel{Responses: []ChatOut{{Text: "a"}}}
	if _, err := mock.Chat(ctx, nil, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected cancellation to be checked before recording the call, got %d calls", mock.CallCount())
	}
}
