package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays canned replies in order and records what it was sent.
type fakeModel struct {
	mu       sync.Mutex
	replies  []*llms.ContentChoice
	err      error
	requests [][]llms.MessageContent
	options  []llms.CallOptions
}

func replyText(texts ...string) *fakeModel {
	m := &fakeModel{}
	for _, t := range texts {
		m.replies = append(m.replies, &llms.ContentChoice{Content: t})
	}
	return m
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.requests = append(m.requests, messages)
	m.options = append(m.options, opts)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return nil, errors.New("fake model: no replies left")
	}
	choice := m.replies[0]
	m.replies = m.replies[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// text of the last message of request i.
func (m *fakeModel) lastInput(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.requests[i]
	return messageText(msgs[len(msgs)-1])
}

func messageText(m llms.MessageContent) string {
	var s string
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			s += t.Text
		}
	}
	return s
}
