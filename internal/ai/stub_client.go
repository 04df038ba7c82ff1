package ai

import (
	"TradeTalk/internal/generation"
	"context"
)

// StubClient заглушка, которая не делает реальных запросов
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Name() string { return "stub" }

func (c *StubClient) Generate(_ context.Context, req generation.Request) generation.Result {
	if req.HasImage() {
		return generation.Success("Stub response: chart received, no analysis performed.")
	}
	return generation.Success("Stub response: question received.")
}
