package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/AltairaLabs/guiagent-mcp/internal/config"
)

// Registry errors surfaced to callers.
var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrMissingCredential = errors.New("missing API key")
	// ErrNotConfigured marks a known provider whose configuration is
	// incomplete for its transport.
	ErrNotConfigured = errors.New("provider not configured")
)

// Kind selects the transport used to reach a provider's backend.
type Kind string

const (
	// KindExec runs the backend as a subprocess speaking JSON on
	// stdin/stdout.
	KindExec Kind = "exec"
	// KindHTTP calls the backend's start_task/continue_task HTTP
	// endpoints.
	KindHTTP Kind = "http"
)

// Info describes one provider as reported by provider listings.
type Info struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"adapter"`
	Model       string `json:"model_name,omitempty"`
	Description string `json:"description,omitempty"`
	RequiresKey bool   `json:"requires_api_key"`
	KeyEnv      string `json:"api_key_env,omitempty"`
	BaseURL     string `json:"api_base,omitempty"`
}

// Provider is a catalog entry merged with its configuration overrides.
type Provider struct {
	Info
	Command    []string
	WorkingDir string
	APIKey     string
}

// Status reports whether a provider is usable right now.
type Status struct {
	Info
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// builtins returns the predefined provider catalog. Configuration
// entries override these field by field and may add entirely new names.
func builtins() map[string]Provider {
	return map[string]Provider{
		"local": {Info: Info{
			Name:        "local",
			Kind:        KindExec,
			Model:       "gelab-zero-4b-preview",
			Description: "Local GELab-Zero agent served via Ollama",
			BaseURL:     "http://localhost:11434/v1",
		}},
		"stepfun": {Info: Info{
			Name:        "stepfun",
			Kind:        KindExec,
			Model:       "step-1v-8k",
			Description: "StepFun hosted vision agent",
			RequiresKey: true,
			KeyEnv:      "STEPFUN_API_KEY",
			BaseURL:     "https://api.stepfun.com/v1",
		}},
		"zhipu": {Info: Info{
			Name:        "zhipu",
			Kind:        KindHTTP,
			Model:       "glm-4.5v",
			Description: "Zhipu AutoGLM phone agent",
			RequiresKey: true,
			KeyEnv:      "ZHIPUAI_API_KEY",
			BaseURL:     "https://open.bigmodel.cn/api/paas/v4/",
		}},
		"qwen": {Info: Info{
			Name:        "qwen",
			Kind:        KindHTTP,
			Model:       "qwen-vl-max",
			Description: "Qwen-VL agent via DashScope",
			RequiresKey: true,
			KeyEnv:      "DASHSCOPE_API_KEY",
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
		}},
	}
}

// Registry resolves provider names to ready-to-use planners.
type Registry struct {
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry merges the built-in catalog with configuration overrides.
func NewRegistry(overrides map[string]config.Provider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	providers := builtins()
	for name, o := range overrides {
		p, ok := providers[name]
		if !ok {
			p = Provider{Info: Info{Name: name, Kind: KindExec}}
			if o.Adapter == "" && o.BaseURL != "" && len(o.Command) == 0 {
				p.Kind = KindHTTP
			}
		}
		if o.Adapter != "" {
			p.Kind = Kind(o.Adapter)
		}
		if o.Model != "" {
			p.Model = o.Model
		}
		if o.BaseURL != "" {
			p.BaseURL = o.BaseURL
		}
		if o.APIKey != "" {
			p.APIKey = o.APIKey
		}
		if len(o.Command) > 0 {
			p.Command = append([]string(nil), o.Command...)
		}
		if o.WorkingDir != "" {
			p.WorkingDir = o.WorkingDir
		}
		providers[name] = p
	}

	return &Registry{providers: providers, logger: logger}
}

// Names returns all known provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the named provider exists and is fully
// configured. It returns the merged entry on success.
func (r *Registry) Validate(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	if p.RequiresKey && p.apiKey() == "" {
		return Provider{}, fmt.Errorf("%w for provider %q: set the %s environment variable or configure providers.%s.api_key",
			ErrMissingCredential, name, p.KeyEnv, name)
	}
	switch p.Kind {
	case KindExec:
		if len(p.Command) == 0 {
			return Provider{}, fmt.Errorf("%w: %q has no command configured; set providers.%s.command", ErrNotConfigured, name, name)
		}
	case KindHTTP:
		if p.BaseURL == "" {
			return Provider{}, fmt.Errorf("%w: %q has no api_base configured; set providers.%s.api_base", ErrNotConfigured, name, name)
		}
	default:
		return Provider{}, fmt.Errorf("%w: %q has unsupported adapter %q", ErrNotConfigured, name, p.Kind)
	}
	return p, nil
}

// Planner builds the planner for the named provider after validating it.
func (r *Registry) Planner(name string) (Planner, error) {
	p, err := r.Validate(name)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindExec:
		return NewExecPlanner(p, r.logger), nil
	default:
		return NewHTTPPlanner(p, r.logger), nil
	}
}

// Describe reports every provider with its readiness, sorted by name.
func (r *Registry) Describe() []Status {
	statuses := make([]Status, 0, len(r.providers))
	for _, name := range r.Names() {
		p := r.providers[name]
		st := Status{Info: p.Info, Ready: true}
		if _, err := r.Validate(name); err != nil {
			st.Ready = false
			st.Detail = err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// SeedEnv exports configured API keys into the process environment when
// the corresponding variable is unset, so exec backends inherit them.
func (r *Registry) SeedEnv() {
	for _, name := range r.Names() {
		p := r.providers[name]
		if p.KeyEnv == "" || p.APIKey == "" || os.Getenv(p.KeyEnv) != "" {
			continue
		}
		if err := os.Setenv(p.KeyEnv, p.APIKey); err != nil {
			r.logger.Warn("seed provider env failed", "provider", name, "env", p.KeyEnv, "error", err)
			continue
		}
		r.logger.Debug("seeded provider env", "provider", name, "env", p.KeyEnv)
	}
}

// apiKey resolves the effective key, preferring explicit configuration
// over the environment.
func (p Provider) apiKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.KeyEnv != "" {
		return os.Getenv(p.KeyEnv)
	}
	return ""
}
