package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
model: someone/other-model
offline: true
runtime_url: http://runtime:9000
max_concurrent: 4
generate_timeout: 5s
server_address: 127.0.0.1:9999
rate_limit: 2.5
log_format: json
`)
	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model != "someone/other-model" || cfg.RuntimeURL != "http://runtime:9000" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Offline == nil || !*cfg.Offline {
		t.Fatal("offline not parsed")
	}
	if cfg.MaxConcurrent == nil || *cfg.MaxConcurrent != 4 {
		t.Fatal("max_concurrent not parsed")
	}
	if cfg.GenerateTimeout == nil || *cfg.GenerateTimeout != 5*time.Second {
		t.Fatalf("generate_timeout = %v", cfg.GenerateTimeout)
	}
	if cfg.RateLimit == nil || *cfg.RateLimit != 2.5 {
		t.Fatal("rate_limit not parsed")
	}
	if cfg.EagerLoad != nil {
		t.Fatal("unset fields must stay nil")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := loadConfig(missing, false); err != nil {
		t.Fatalf("implicit missing config should be ignored: %v", err)
	}
	if _, err := loadConfig(missing, true); err == nil {
		t.Fatal("explicit missing config should fail")
	}
	if _, err := loadConfig(writeConfig(t, "model: [unterminated"), false); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyConfigKeepsExplicitFlags(t *testing.T) {
	concurrent := int64(8)
	cfg := Config{
		Model:         "cfg/model",
		RuntimeURL:    "http://cfg-runtime:1",
		MaxConcurrent: &concurrent,
		ServerAddress: "127.0.0.1:1",
	}
	cmd := &cli.Command{
		Name:  "serve",
		Flags: serveCmd().Flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, cfg)
			applyServeConfig(c, cfg)
			return nil
		},
	}
	args := []string{"serve", "--model", "flag/model", "--addr", "127.0.0.1:2"}
	if err := cmd.Run(context.Background(), args); err != nil {
		t.Fatalf("run: %v", err)
	}
	if modelRepo != "flag/model" {
		t.Fatalf("explicit --model overridden: %q", modelRepo)
	}
	if addr != "127.0.0.1:2" {
		t.Fatalf("explicit --addr overridden: %q", addr)
	}
	if runtimeURL != "http://cfg-runtime:1" {
		t.Fatalf("runtime_url from config not applied: %q", runtimeURL)
	}
	if maxConcurrent != 8 {
		t.Fatalf("max_concurrent from config not applied: %d", maxConcurrent)
	}
	if maxLength != 256 {
		t.Fatalf("max_length default changed: %d", maxLength)
	}
}
