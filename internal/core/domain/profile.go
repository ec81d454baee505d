package domain

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Kind is the closed set of backend variants. Adding a backend means adding a
// constant here and an adapter package registered under it.
type Kind string

const (
	KindLocal     Kind = "local"
	KindLMStudio  Kind = "lmstudio"
	KindOllama    Kind = "ollama"
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindClaudeCLI Kind = "claude-cli"
	KindOpenAICLI Kind = "openai-cli"
)

// Kinds returns every known backend kind.
func Kinds() []Kind {
	return []Kind{
		KindLocal, KindLMStudio, KindOllama,
		KindOpenAI, KindAnthropic,
		KindClaudeCLI, KindOpenAICLI,
	}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Network reports whether profiles of this kind are reachable over HTTP and
// therefore subject to connection probing. Local and CLI kinds are always
// considered ready and are never probed.
func (k Kind) Network() bool {
	switch k {
	case KindLMStudio, KindOllama, KindOpenAI, KindAnthropic:
		return true
	}
	return false
}

// Credentialed reports whether this kind requires an API key at use time.
// Profiles of these kinds may be saved without a key, but any operation or
// probe against them rejects the missing credential.
func (k Kind) Credentialed() bool {
	return k == KindOpenAI || k == KindAnthropic
}

const (
	defaultTimeout     = 30 * time.Second
	defaultLMHost      = "127.0.0.1"
	defaultLMPort      = 1234
	defaultOllamaHost  = "127.0.0.1"
	defaultOllamaPort  = 11434
	openAIBaseURL      = "https://api.openai.com/v1"
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	defaultClaudeBin   = "claude"
	defaultOpenAICLIBn = "openai"
)

// Profile describes one configured backend instance together with its
// routing metadata. Profiles are read from the resolved configuration;
// this core never mutates them after resolution.
type Profile struct {
	ID       string        `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	Type     Kind          `mapstructure:"type" json:"type" yaml:"type" validate:"required"`
	Tags     []string      `mapstructure:"tags" json:"tags,omitempty" yaml:"tags,omitempty"`
	Priority int           `mapstructure:"priority" json:"priority" yaml:"priority" validate:"gte=0"`
	Host     string        `mapstructure:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int           `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Model    string        `mapstructure:"model" json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string        `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string        `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	OrgID    string        `mapstructure:"org_id" json:"org_id,omitempty" yaml:"org_id,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// CLI-bridge kinds only.
	Binary string   `mapstructure:"binary" json:"binary,omitempty" yaml:"binary,omitempty"`
	Args   []string `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
}

// Normalize fills per-kind defaults. It returns a copy; the receiver is
// left untouched so resolved snapshots stay immutable.
func (p Profile) Normalize() Profile {
	switch p.Type {
	case KindLMStudio:
		if p.Host == "" {
			p.Host = defaultLMHost
		}
		if p.Port == 0 {
			p.Port = defaultLMPort
		}
	case KindOllama:
		if p.Host == "" {
			p.Host = defaultOllamaHost
		}
		if p.Port == 0 {
			p.Port = defaultOllamaPort
		}
	case KindOpenAI:
		if p.BaseURL == "" {
			p.BaseURL = openAIBaseURL
		}
	case KindAnthropic:
		if p.BaseURL == "" {
			p.BaseURL = anthropicBaseURL
		}
	case KindClaudeCLI:
		if p.Binary == "" {
			p.Binary = defaultClaudeBin
		}
	case KindOpenAICLI:
		if p.Binary == "" {
			p.Binary = defaultOpenAICLIBn
		}
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	return p
}

// Endpoint returns the base URL requests are issued against. Only meaningful
// for network kinds; local-server kinds prefer an explicit base URL over
// host and port.
func (p Profile) Endpoint() string {
	norm := p.Normalize()
	switch norm.Type {
	case KindLMStudio:
		if norm.BaseURL != "" {
			return norm.BaseURL
		}
		return "http://" + net.JoinHostPort(norm.Host, strconv.Itoa(norm.Port)) + "/v1"
	case KindOllama:
		if norm.BaseURL != "" {
			return norm.BaseURL
		}
		return "http://" + net.JoinHostPort(norm.Host, strconv.Itoa(norm.Port))
	case KindOpenAI, KindAnthropic:
		return norm.BaseURL
	}
	return ""
}

// HasAnyTag reports whether the profile's tag set intersects wanted.
// An empty wanted set matches every profile.
func (p Profile) HasAnyTag(wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		for _, t := range p.Tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// Validate checks the invariants a profile must satisfy before it can be
// part of the active set.
func (p Profile) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if !p.Type.Valid() {
		return ConfigurationError(p.Type, fmt.Sprintf("unknown provider type %q for profile %q", p.Type, p.ID),
			fmt.Sprintf("use one of %v", Kinds()))
	}
	if p.Type.Network() && p.Endpoint() == "" {
		return ConfigurationError(p.Type, fmt.Sprintf("profile %q needs host+port or base_url", p.ID),
			"set host and port, or base_url")
	}
	return nil
}
