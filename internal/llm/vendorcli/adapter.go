// Package vendorcli adapts locally authenticated vendor command-line
// tools (the claude and openai binaries) to the provider contract. The
// "network call" is a bounded subprocess invocation: the prompt goes to
// stdin, stdout comes back as the response, and failures map into the
// same taxonomy the HTTP adapters use.
package vendorcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/pkg/api"
)

func init() {
	llm.Register(domain.KindClaudeCLI, newClaude)
	llm.Register(domain.KindOpenAICLI, newOpenAI)
}

func newClaude(p domain.Profile) (llm.Provider, error) {
	return newAdapter(p, domain.KindClaudeCLI, "install the Anthropic CLI and sign in")
}

func newOpenAI(p domain.Profile) (llm.Provider, error) {
	return newAdapter(p, domain.KindOpenAICLI, "install the OpenAI CLI and run 'openai login'")
}

type Adapter struct {
	profile     domain.Profile
	kind        domain.Kind
	installHint string
}

// newAdapter validates binary presence early for clearer errors.
func newAdapter(p domain.Profile, kind domain.Kind, installHint string) (llm.Provider, error) {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil, domain.ConfigurationError(kind,
			fmt.Sprintf("binary %q not found in PATH", p.Binary), installHint)
	}
	return &Adapter{profile: p, kind: kind, installHint: installHint}, nil
}

func (a *Adapter) Name() string      { return a.profile.ID }
func (a *Adapter) Kind() domain.Kind { return a.kind }
func (a *Adapter) Probeable() bool   { return false }

func (a *Adapter) argv() []string {
	var args []string
	if a.profile.Model != "" {
		args = append(args, "-m", a.profile.Model)
	}
	return append(args, a.profile.Args...)
}

func (a *Adapter) run(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.profile.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.profile.Binary, a.argv()...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.TimeoutError(a.kind, a.profile.Binary, a.profile.Timeout, err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", context.Canceled
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", domain.UnavailableError(a.kind, a.profile.Binary,
			"command failed: "+msg, a.installHint, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	return a.run(ctx, prompt)
}

// Chat flattens history into one role-prefixed prompt; the vendor CLIs
// take a single text on stdin.
func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	return a.run(ctx, llm.FlattenHistory(history))
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return a.run(ctx, text)
}

// Models is unsupported: the vendor CLIs expose no enumeration surface.
func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	return nil, domain.UnsupportedOperationError(a.kind, "models")
}
