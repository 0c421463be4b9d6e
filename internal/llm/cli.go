// This file implements the CLI-bridged provider slot: generation through a
// locally installed assistant binary (e.g. the claude CLI) instead of HTTP.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const cliDefaultTimeout = 120 * time.Second

// CLIConfig configures a CLI-bridged client.
type CLIConfig struct {
	// Binary is the executable name or path (required), e.g. "claude".
	Binary string

	// Args are prepended before the prompt, e.g. ["--print"].
	Args []string

	// Model is a label recorded on responses; the binary picks the
	// actual model itself.
	Model string

	// TimeoutSecs bounds each invocation. Default: 120
	TimeoutSecs int64
}

// CLIClient implements Client by invoking a local assistant binary and
// reading its stdout. Token usage is estimated; the bridge has no wire
// protocol to report exact counts.
type CLIClient struct {
	binary      string
	args        []string
	model       string
	timeoutSecs int64
}

// NewCLIClient validates the configuration. The binary is resolved at
// call time so an install after construction still works.
func NewCLIClient(config CLIConfig) (*CLIClient, error) {
	if config.Binary == "" {
		return nil, NewError(KindConfiguration, "cli", "binary is required")
	}
	if config.Model == "" {
		config.Model = config.Binary
	}
	if config.TimeoutSecs <= 0 {
		config.TimeoutSecs = int64(cliDefaultTimeout / time.Second)
	}
	return &CLIClient{
		binary:      config.Binary,
		args:        config.Args,
		model:       config.Model,
		timeoutSecs: config.TimeoutSecs,
	}, nil
}

// ProviderName returns "cli".
func (c *CLIClient) ProviderName() string { return "cli" }

// ModelName returns the configured model label.
func (c *CLIClient) ModelName() string { return c.model }

// HealthCheck verifies the binary resolves on PATH.
func (c *CLIClient) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return &Error{Kind: KindCliBinaryNotFound, Provider: "cli", Path: c.binary, Cause: err}
	}
	return nil
}

// EstimateTokens approximates the token count of text.
func (c *CLIClient) EstimateTokens(text string) int { return estimateTokens(text) }

// Generate runs the binary with the prompt on stdin and returns stdout.
func (c *CLIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return nil, &Error{Kind: KindCliBinaryNotFound, Provider: "cli", Path: c.binary, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, clampTimeout(c.timeoutSecs, cliDefaultTimeout))
	defer cancel()

	cmd := exec.CommandContext(ctx, path, c.args...)
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError("cli", c.timeoutSecs)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &Error{
			Kind:     KindCliExecutionError,
			Provider: "cli",
			Model:    c.model,
			Message:  fmt.Sprintf("%s: %s", c.binary, detail),
			Cause:    err,
		}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, NewError(KindInvalidResponse, "cli", "binary produced no output")
	}

	total := estimateTokens(text)
	return &GenerateResponse{
		Text:         text,
		ModelUsed:    c.model,
		FinishReason: "stop",
		TokenUsage:   &TokenUsage{TotalTokens: &total},
	}, nil
}
