package api

import "context"

// FailureKind classifies why an ask did not produce an answer.
type FailureKind string

const (
	// FailureTransport covers connection errors, timeouts and non-2xx statuses.
	FailureTransport FailureKind = "transport"
	// FailureParse covers well-delivered responses with an unexpected shape.
	FailureParse FailureKind = "parse"
)

// Failure describes one failed ask. Detail is for logs only and must never
// be forwarded to the chat.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Detail
}

// AskResult is the outcome of one LLM query: either an answer or a failure,
// never both, never neither.
type AskResult struct {
	Answer  string
	Failure *Failure
}

// OK reports whether the ask produced an answer.
func (r AskResult) OK() bool {
	return r.Failure == nil
}

func answerResult(text string) AskResult {
	return AskResult{Answer: text}
}

func failureResult(kind FailureKind, detail string) AskResult {
	return AskResult{Failure: &Failure{Kind: kind, Detail: detail}}
}

// Asker sends one question to an LLM backend and returns a typed outcome.
// Implementations attempt the call exactly once; retry policy belongs to
// the caller. sessionID may be empty for sessionless asks.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) AskResult
}

// Sessions manages server-side conversation sessions. Only backends that
// keep history server-side implement it; callers must tolerate its absence.
type Sessions interface {
	CreateSession(ctx context.Context) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
