package service

import (
	"strings"
	"testing"
)

func TestCommandArgs(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"/ask What is Go?", "What is Go?"},
		{"/ask@khoda_bot What is Go?", "What is Go?"},
		{"/ask", ""},
		{"/ask   ", ""},
		{"/report I found a bug", "I found a bug"},
		{"plain text", "plain text"},
	}

	for _, tc := range cases {
		if got := CommandArgs(tc.text); got != tc.want {
			t.Errorf("CommandArgs(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestTruncateShortText(t *testing.T) {
	if got := Truncate("hello", MaxMessageLen); got != "hello" {
		t.Errorf("short text should pass through, got %q", got)
	}
}

func TestTruncateLongText(t *testing.T) {
	long := strings.Repeat("a", MaxMessageLen+100)
	got := Truncate(long, MaxMessageLen)
	if len(got) > MaxMessageLen {
		t.Errorf("truncated text is %d bytes, limit is %d", len(got), MaxMessageLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated text should end with ellipsis marker")
	}
}

func TestTruncateDoesNotSplitRunes(t *testing.T) {
	long := strings.Repeat("é", MaxMessageLen)
	got := Truncate(long, MaxMessageLen)
	if len(got) > MaxMessageLen {
		t.Fatalf("truncated text is %d bytes, limit is %d", len(got), MaxMessageLen)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatal("truncation split a multi-byte rune")
		}
	}
}

func TestTriggerKinds(t *testing.T) {
	cmd := Command("ask")
	if !cmd.IsCommand() || cmd.Name() != "ask" {
		t.Errorf("Command trigger broken: %+v", cmd)
	}
	if AnyMessage.IsCommand() {
		t.Error("AnyMessage must not be a command trigger")
	}
}
