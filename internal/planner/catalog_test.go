package planner

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/AltairaLabs/guiagent-mcp/internal/config"
)

func TestRegistryMergesOverrides(t *testing.T) {
	reg := NewRegistry(map[string]config.Provider{
		"zhipu": {APIKey: "sk-zhipu", BaseURL: "http://127.0.0.1:8800"},
		"lab": {
			Adapter: "http",
			Model:   "lab-vl-1",
			BaseURL: "http://lab.internal:9000",
		},
	}, nil)

	p, err := reg.Validate("zhipu")
	if err != nil {
		t.Fatalf("Validate(zhipu) error = %v", err)
	}
	if p.BaseURL != "http://127.0.0.1:8800" {
		t.Errorf("zhipu BaseURL = %q, want override", p.BaseURL)
	}
	if p.Model != "glm-4.5v" {
		t.Errorf("zhipu Model = %q, want builtin preserved", p.Model)
	}

	p, err = reg.Validate("lab")
	if err != nil {
		t.Fatalf("Validate(lab) error = %v", err)
	}
	if p.Kind != KindHTTP {
		t.Errorf("lab Kind = %q, want %q", p.Kind, KindHTTP)
	}

	want := []string{"lab", "local", "qwen", "stepfun", "zhipu"}
	if got := reg.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryInfersKindForNewProviders(t *testing.T) {
	reg := NewRegistry(map[string]config.Provider{
		"served": {BaseURL: "http://127.0.0.1:7000"},
		"script": {Command: []string{"/usr/local/bin/agent"}},
	}, nil)

	p, err := reg.Validate("served")
	if err != nil {
		t.Fatalf("Validate(served) error = %v", err)
	}
	if p.Kind != KindHTTP {
		t.Errorf("served Kind = %q, want %q", p.Kind, KindHTTP)
	}

	p, err = reg.Validate("script")
	if err != nil {
		t.Fatalf("Validate(script) error = %v", err)
	}
	if p.Kind != KindExec {
		t.Errorf("script Kind = %q, want %q", p.Kind, KindExec)
	}
}

func TestRegistryValidateErrors(t *testing.T) {
	t.Setenv("STEPFUN_API_KEY", "")
	t.Setenv("ZHIPUAI_API_KEY", "")

	reg := NewRegistry(map[string]config.Provider{
		"weird": {Adapter: "grpc"},
	}, nil)

	tests := []struct {
		name     string
		provider string
		wantErr  error
		wantMsg  string
	}{
		{
			name:     "unknown provider lists catalog",
			provider: "nope",
			wantErr:  ErrUnknownProvider,
			wantMsg:  "available: local, qwen, stepfun, weird, zhipu",
		},
		{
			name:     "missing key names env var and config path",
			provider: "zhipu",
			wantErr:  ErrMissingCredential,
			wantMsg:  "ZHIPUAI_API_KEY environment variable or configure providers.zhipu.api_key",
		},
		{
			name:     "exec provider without command",
			provider: "local",
			wantErr:  ErrNotConfigured,
			wantMsg:  "providers.local.command",
		},
		{
			name:     "unsupported adapter",
			provider: "weird",
			wantErr:  ErrNotConfigured,
			wantMsg:  "unsupported adapter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Validate(tt.provider)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() error = %q, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRegistryValidateAcceptsEnvKey(t *testing.T) {
	t.Setenv("STEPFUN_API_KEY", "sk-env")

	reg := NewRegistry(map[string]config.Provider{
		"stepfun": {Command: []string{"/opt/stepfun/agent"}},
	}, nil)
	if _, err := reg.Validate("stepfun"); err != nil {
		t.Fatalf("Validate(stepfun) error = %v", err)
	}
}

func TestRegistryDescribe(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")

	reg := NewRegistry(map[string]config.Provider{
		"zhipu": {APIKey: "sk-zhipu"},
	}, nil)

	byName := make(map[string]Status)
	for _, st := range reg.Describe() {
		byName[st.Name] = st
	}
	if !byName["zhipu"].Ready {
		t.Errorf("zhipu Ready = false, want true: %s", byName["zhipu"].Detail)
	}
	if byName["qwen"].Ready {
		t.Error("qwen Ready = true, want false without a key")
	}
	if byName["qwen"].Detail == "" {
		t.Error("qwen Detail empty, want readiness explanation")
	}
}

func TestSeedEnvExportsConfiguredKeys(t *testing.T) {
	t.Setenv("STEPFUN_API_KEY", "")
	t.Setenv("ZHIPUAI_API_KEY", "preexisting")
	os.Unsetenv("STEPFUN_API_KEY")

	reg := NewRegistry(map[string]config.Provider{
		"stepfun": {APIKey: "sk-seeded"},
		"zhipu":   {APIKey: "sk-ignored"},
	}, nil)
	reg.SeedEnv()

	if got := os.Getenv("STEPFUN_API_KEY"); got != "sk-seeded" {
		t.Errorf("STEPFUN_API_KEY = %q, want seeded value", got)
	}
	if got := os.Getenv("ZHIPUAI_API_KEY"); got != "preexisting" {
		t.Errorf("ZHIPUAI_API_KEY = %q, want existing value kept", got)
	}
}
