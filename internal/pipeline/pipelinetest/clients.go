// Package pipelinetest provides offline model clients for running the
// pipeline without a provider.
package pipelinetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/design/designtest"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// CallUsage is reported for every canned call.
var CallUsage = llm.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}

// Clients implements pipeline.Clients with canned documents chosen by the
// response schema name of each request. Every provider is accepted. Each
// schema has a queue of responses; the last one repeats.
type Clients struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     map[string]int
}

// NewClients returns clients that approve the sample URL shortener design
// on the first evaluation.
func NewClients() *Clients {
	return &Clients{
		responses: map[string][]string{
			"HighLevelDesign":    {designtest.JSON(designtest.HLD())},
			"SecurityCompliance": {designtest.JSON(designtest.Security())},
			"LowLevelDesign":     {designtest.JSON(designtest.LLD())},
			"Verdict":            {designtest.JSON(designtest.Approved())},
			"RefinedDesign":      {designtest.JSON(designtest.Refined("addressed review"))},
			"DiagramCode":        {designtest.JSON(designtest.Diagrams())},
			"DiagramReview":      {designtest.JSON(design.DiagramReview{ValidSyntax: true, Critique: "consistent"})},
			"ScaffoldSpec":       {designtest.JSON(designtest.Scaffold())},
		},
		calls: map[string]int{},
	}
}

// Set replaces the response queue of schema.
func (c *Clients) Set(schema string, responses ...string) *Clients {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[schema] = responses
	return c
}

// Calls returns how many requests named schema.
func (c *Clients) Calls(schema string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[schema]
}

// Check implements pipeline.Clients.
func (c *Clients) Check(cfg provider.Config) error {
	if cfg.Name == "" {
		return &provider.UnknownProviderError{Name: cfg.Name}
	}
	return nil
}

// Model implements pipeline.Clients.
func (c *Clients) Model(_ provider.Config, tier provider.Tier) (string, error) {
	return "canned-" + string(tier), nil
}

// Client implements pipeline.Clients.
func (c *Clients) Client(cfg provider.Config, _ provider.Tier) (llm.Client, error) {
	if err := c.Check(cfg); err != nil {
		return nil, err
	}
	return llm.NewMockClient("").WithHandler(c.complete), nil
}

func (c *Clients) complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	name := ""
	if req.ResponseFormat != nil {
		name = req.ResponseFormat.Name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	queue := c.responses[name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no canned response for %q", name)
	}
	if len(queue) > 1 {
		c.responses[name] = queue[1:]
	}
	return &llm.CompletionResponse{Content: queue[0], Model: req.Model, Usage: CallUsage}, nil
}
