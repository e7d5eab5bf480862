package conversation

import (
	"testing"

	"github.com/botweaver/engine/internal/workflow"
)

func TestTrimTail(t *testing.T) {
	msgs := []workflow.HistoryMessage{
		{Sender: SenderUser, Content: "1"},
		{Sender: SenderBot, Content: "2"},
		{Sender: SenderUser, Content: "3"},
		{Sender: SenderBot, Content: "4"},
	}

	trimmed := trimTail(msgs, 2)
	if len(trimmed) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(trimmed))
	}
	if trimmed[0].Content != "3" || trimmed[1].Content != "4" {
		t.Errorf("expected most recent messages kept, got %+v", trimmed)
	}
}

func TestTrimTailNoLimit(t *testing.T) {
	msgs := []workflow.HistoryMessage{{Sender: SenderUser, Content: "1"}}

	if got := trimTail(msgs, 0); len(got) != 1 {
		t.Errorf("expected no trimming with zero limit, got %d messages", len(got))
	}
	if got := trimTail(msgs, 5); len(got) != 1 {
		t.Errorf("expected no trimming under limit, got %d messages", len(got))
	}
}

func TestHistoryKey(t *testing.T) {
	if got := historyKey("support", "c-1"); got != "conversation:support:c-1" {
		t.Errorf("unexpected key: %q", got)
	}
}
