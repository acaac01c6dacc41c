package testing

import (
	"context"
	"sync"

	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/errors"
)

// AIScript is a scripted double for the AI client. Each Chat call pops the
// next scripted reply in order; requests are recorded so tests can assert on
// prompt content and call counts. A nil error with its reply means success.
type AIScript struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []openrouter.ChatRequest
}

type scriptedReply struct {
	content string
	err     error
}

// NewAIScript creates a scripted AI client that answers with the given
// replies in order.
func NewAIScript(replies ...string) *AIScript {
	s := &AIScript{}
	for _, r := range replies {
		s.replies = append(s.replies, scriptedReply{content: r})
	}
	return s
}

// FailNext appends a scripted error reply.
func (s *AIScript) FailNext(err error) *AIScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, scriptedReply{err: err})
	return s
}

// Reply appends a scripted success reply.
func (s *AIScript) Reply(content string) *AIScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, scriptedReply{content: content})
	return s
}

// Chat implements provider.AIClient.
func (s *AIScript) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return nil, errors.New("AIScript: no scripted reply left")
	}

	next := s.replies[0]
	s.replies = s.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &openrouter.ChatResponse{
		Content: next.content,
		Usage:   openrouter.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

// Calls returns how many Chat calls the script has served.
func (s *AIScript) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns the i-th recorded Chat request.
func (s *AIScript) Request(i int) openrouter.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// LastRequest returns the most recent recorded Chat request.
func (s *AIScript) LastRequest() openrouter.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}
