package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	return f.text, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChainReturnsFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "first", text: "hello"}
	second := &fakeProvider{name: "second", text: "unreached"}
	chain := NewChain(discardLogger(), first, second)

	text, source, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hello" || source != "first" {
		t.Fatalf("got (%q, %q), want (hello, first)", text, source)
	}
	if second.calls != 0 {
		t.Fatalf("second provider called %d times, want 0", second.calls)
	}
}

func TestChainFallsThroughOnError(t *testing.T) {
	first := &fakeProvider{name: "first", err: errors.New("boom")}
	second := &fakeProvider{name: "second", text: "recovered"}
	chain := NewChain(discardLogger(), first, second)

	text, source, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "recovered" || source != "second" {
		t.Fatalf("got (%q, %q), want (recovered, second)", text, source)
	}
}

func TestChainFallsThroughOnEmptyText(t *testing.T) {
	first := &fakeProvider{name: "first", text: ""}
	second := &fakeProvider{name: "second", text: "ok"}
	chain := NewChain(discardLogger(), first, second)

	_, source, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if source != "second" {
		t.Fatalf("source = %q, want second", source)
	}
}

func TestChainExhaustedReturnsError(t *testing.T) {
	first := &fakeProvider{name: "first", err: errors.New("down")}
	chain := NewChain(discardLogger(), first)

	_, _, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("want error when all providers fail")
	}
}

func TestChainSkipsNilProviders(t *testing.T) {
	chain := NewChain(discardLogger(), nil, &fakeProvider{name: "only", text: "x"})
	if !chain.Available() {
		t.Fatal("chain with one real provider should be available")
	}
	_, source, err := chain.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if source != "only" {
		t.Fatalf("source = %q, want only", source)
	}
}

func TestEmptyChainUnavailable(t *testing.T) {
	chain := NewChain(discardLogger())
	if chain.Available() {
		t.Fatal("empty chain should not be available")
	}
	if _, _, err := chain.Generate(context.Background(), Request{}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestStudyPromptIncludesInputAndContext(t *testing.T) {
	p := StudyPrompt("what is recursion", "[CS Basics]: functions can call themselves")
	if !strings.Contains(p, "what is recursion") {
		t.Error("prompt missing user input")
	}
	if !strings.Contains(p, "[CS Basics]: functions can call themselves") {
		t.Error("prompt missing context")
	}
}

func TestSummaryPromptKeepsLastTenTurns(t *testing.T) {
	turns := make([]Turn, 12)
	for i := range turns {
		turns[i] = Turn{UserInput: "q", AIResponse: "a"}
	}
	turns[0].UserInput = "oldest question"
	turns[11].UserInput = "newest question"

	p := SummaryPrompt(turns)
	if strings.Contains(p, "oldest question") {
		t.Error("prompt should drop turns beyond the last ten")
	}
	if !strings.Contains(p, "newest question") {
		t.Error("prompt missing most recent turn")
	}
}
