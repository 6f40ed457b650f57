package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"redub/internal/blob"
	"redub/internal/config"
	"redub/internal/store"
	"redub/internal/testsupport"
)

type cliEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLIEnv writes a complete config file backed by temp directories so
// commands run against an isolated database and object store.
func setupCLIEnv(t *testing.T) cliEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	rendered, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(configPath, rendered, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cliEnv{cfg: cfg, configPath: configPath}
}

func (e cliEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, e.cfg)
}

func (e cliEnv) openBlobs(t *testing.T) blob.Store {
	t.Helper()
	blobs, err := blob.New(context.Background(), e.cfg)
	if err != nil {
		t.Fatalf("blob.New: %v", err)
	}
	return blobs
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}
