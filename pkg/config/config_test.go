package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(writeConfig(t, "svcgen.yaml", "{}\n")))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.OutDir))
	assert.Equal(t, "output", filepath.Base(cfg.OutDir))
	assert.Equal(t, "python", cfg.Language)
	assert.Equal(t, "3.10", cfg.LanguageVersion)
	assert.Equal(t, []string{"black", "-q", "."}, cfg.Formatter)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, 8000, cfg.Gateway.PortMin)
	assert.Equal(t, 9000, cfg.Gateway.PortMax)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "svcgen.yaml", `
outDir: /tmp/generated
languageVersion: "3.12"
parallelism: 4
excludeFiles: ["Orders/Dockerfile"]
gateway:
  port: 8080
  configPath: /etc/nginx/nginx.conf
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/generated", cfg.OutDir)
	assert.Equal(t, "3.12", cfg.LanguageVersion)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "/etc/nginx/nginx.conf", cfg.Gateway.ConfigPath)
	assert.True(t, cfg.ShouldExcludeFile("Orders/Dockerfile"))
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "svcgen.toml", `
outDir = "/tmp/toml-out"
formatter = []

[gateway]
portMin = 9100
portMax = 9200
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/toml-out", cfg.OutDir)
	assert.Empty(t, cfg.Formatter)
	assert.Equal(t, 9100, cfg.Gateway.PortMin)
	assert.Equal(t, 9200, cfg.Gateway.PortMax)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SVCGEN_PARALLELISM", "3")
	t.Setenv("SVCGEN_GATEWAY_PORT", "8181")

	cfg, err := Load(writeConfig(t, "svcgen.yaml", "outDir: /tmp/x\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Parallelism)
	assert.Equal(t, 8181, cfg.Gateway.Port)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero parallelism", "parallelism: 0\n", "Parallelism"},
		{"bad port range", "gateway: {portMin: 9000, portMax: 8000}\n", "PortMax"},
		{"unsupported version", "languageVersion: \"2.7\"\n", "not supported"},
		{"not a version", "languageVersion: latest\n", "not a version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "svcgen.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestShouldExcludeFile(t *testing.T) {
	patterns := []string{"Orders/Dockerfile", "Orders/external/", "Billing"}
	tests := []struct {
		path string
		want bool
	}{
		{"Orders/Dockerfile", true},
		{"Orders/external/consul.py", true},
		{"Orders/external", true},
		{"Billing/main.py", true},
		{"Orders/main.py", false},
		{"Orders/externals/x.py", false},
		{"BillingService/main.py", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldExcludeFile(patterns, tt.path), tt.path)
	}
	assert.False(t, ShouldExcludeFile(nil, "Orders/main.py"))
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIgnoresWorkingDirectoryConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "svcgen.yaml"), []byte("outDir: /tmp/stray\nparallelism: 7\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "output", filepath.Base(cfg.OutDir))
	assert.Equal(t, 1, cfg.Parallelism)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/stray", loaded.OutDir)
	assert.Equal(t, 7, loaded.Parallelism)
}
