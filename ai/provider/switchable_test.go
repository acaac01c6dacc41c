package provider

import (
	"context"
	"sync"
	"testing"

	"github.com/teranos/matinee/ai/openrouter"
)

type cannedClient struct {
	content string
}

func (c *cannedClient) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	return &openrouter.ChatResponse{Content: c.content}, nil
}

func TestSwitchableSwap(t *testing.T) {
	sw := NewSwitchable(&cannedClient{content: "first"})

	resp, err := sw.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q", resp.Content, "first")
	}

	sw.Swap(&cannedClient{content: "second"})

	resp, err = sw.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "second" {
		t.Errorf("Content after Swap = %q, want %q", resp.Content, "second")
	}
}

func TestSwitchableConcurrentSwap(t *testing.T) {
	sw := NewSwitchable(&cannedClient{content: "a"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := sw.Chat(context.Background(), openrouter.ChatRequest{}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		sw.Swap(&cannedClient{content: "b"})
	}
	wg.Wait()
}
