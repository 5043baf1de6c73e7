package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI implements Client by shelling out to the claude binary in
// print mode with JSON output, which carries token usage.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeOption configures ClaudeCLI.
type ClaudeOption func(*ClaudeCLI)

// NewClaudeCLI creates a client for the claude binary on PATH.
func NewClaudeCLI(opts ...ClaudeOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClaudePath sets the path to the claude binary.
func WithClaudePath(path string) ClaudeOption {
	return func(c *ClaudeCLI) { c.path = path }
}

// WithModel sets the default model.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeCLI) { c.model = model }
}

// WithWorkdir sets the working directory for claude commands.
func WithWorkdir(dir string) ClaudeOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

// Complete implements Client.
func (c *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(req)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, c.wrap(ctx.Err(), ctx.Err() == context.DeadlineExceeded)
		}
		errMsg := strings.TrimSpace(stderr.String())
		return nil, c.wrap(fmt.Errorf("%w: %s", err, errMsg), isRetryableError(errMsg))
	}

	resp, err := c.parseResponse(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)
	return resp, nil
}

func (c *ClaudeCLI) wrap(err error, retryable bool) *Error {
	e := NewError("complete", err, retryable)
	e.Provider = "claude-cli"
	return e
}

// buildArgs constructs CLI arguments from a request.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"--print", "--output-format", "json"}

	system := req.SystemPrompt
	if req.ResponseFormat != nil {
		// The CLI has no native schema option; the schema travels in the prompt.
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object matching this JSON schema:\n" +
			string(req.ResponseFormat.Schema))
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	// The CLI takes one prompt; earlier assistant turns become inline context.
	var prompt strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n")
		case RoleAssistant:
			if prompt.Len() > 0 {
				prompt.WriteString("\nAssistant: ")
				prompt.WriteString(msg.Content)
				prompt.WriteString("\n\nUser: ")
			}
		}
	}

	if p := strings.TrimSpace(prompt.String()); p != "" {
		args = append(args, p)
	}
	return args
}

// cliResult is the document printed by --output-format json.
type cliResult struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
	Usage   struct {
		InputTokens              int `json:"input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		OutputTokens             int `json:"output_tokens"`
	} `json:"usage"`
}

// parseResponse extracts the result and usage from CLI output.
// Output that is not a JSON result document is taken as plain text.
func (c *ClaudeCLI) parseResponse(data []byte) (*CompletionResponse, error) {
	var res cliResult
	if err := json.Unmarshal(bytes.TrimSpace(data), &res); err != nil || res.Type != "result" {
		return &CompletionResponse{
			Content:      strings.TrimSpace(string(data)),
			FinishReason: "stop",
			Model:        c.model,
		}, nil
	}

	if res.IsError {
		return nil, c.wrap(fmt.Errorf("%s: %s", res.Subtype, res.Result), isRetryableError(res.Result))
	}

	prompt := res.Usage.InputTokens + res.Usage.CacheCreationInputTokens + res.Usage.CacheReadInputTokens
	return &CompletionResponse{
		Content:      strings.TrimSpace(res.Result),
		FinishReason: "stop",
		Model:        c.model,
		Usage: TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: res.Usage.OutputTokens,
		}.Normalize(),
	}, nil
}

// isRetryableError checks if an error message indicates a transient error.
func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}
