package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadCfgFromEnvironmentOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	config, err := loadCfg(path, false, mapEnv(map[string]string{
		"GITHUB_TOKEN":    "secret",
		"TARGET_ORGS":     "acme, globex",
		"INACTIVITY_DAYS": "30",
	}))
	require.NoError(t, err)

	assert.Equal(t, "secret", config.GithubAPIToken)
	assert.Equal(t, []string{"acme", "globex"}, config.BranchMerge.Organizations)
	assert.Equal(t, 30, config.BranchMerge.InactivityDays)
	assert.Equal(t, "logfmt", config.LogFormat)
}

func TestLoadCfgMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	env := mapEnv(map[string]string{"GITHUB_TOKEN": "secret"})

	_, err := loadCfg(path, true, env)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = loadCfg(path, false, mapEnv(nil))
	assert.Error(t, err, "configuration without credentials must be invalid")
}

func TestLoadCfgEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
github_api_token = "from-file"

[branch_merge]
organizations = ["acme"]
`), 0o600))

	config, err := loadCfg(path, true, mapEnv(map[string]string{"TARGET_ORGS": "globex"}))
	require.NoError(t, err)

	assert.Equal(t, "from-file", config.GithubAPIToken)
	assert.Equal(t, []string{"globex"}, config.BranchMerge.Organizations)
}

func TestIsCommand(t *testing.T) {
	for _, cmd := range []string{cmdBranchMerge, cmdPRSweep, cmdServe} {
		assert.True(t, isCommand(cmd), cmd)
	}

	assert.False(t, isCommand("merge"))
	assert.False(t, isCommand(""))
}
