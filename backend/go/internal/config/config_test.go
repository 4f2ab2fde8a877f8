package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 200, cfg.Lifecycle.HistoryLimit)
	assert.Equal(t, 80, cfg.Lifecycle.SnapshotHistory)
	assert.Equal(t, 120, cfg.Lifecycle.TaskTextLimit)
	assert.Equal(t, 3, cfg.Lifecycle.MaxActionQuests)
	assert.Equal(t, "300s", cfg.Workflow.DispatchTimeout)
	assert.Equal(t, "15m", cfg.Monitor.AlertCooldown)
	assert.NotEmpty(t, cfg.Lifecycle.ActionKeywords)
	assert.NotEmpty(t, cfg.Lifecycle.ClarificationKeywords)
	require.NotEmpty(t, cfg.Lifecycle.Agents)
	assert.Equal(t, "manager", cfg.Lifecycle.Agents[0].Key)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("OFFICE_TEST_WEBHOOK", "http://engine.local/webhook/run")
	cfg, err := Parse([]byte("workflow:\n  webhookURL: \"${OFFICE_TEST_WEBHOOK}\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://engine.local/webhook/run", cfg.Workflow.WebhookURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "storage:\n  driver: sqlite\n"},
		{"rest without url", "storage:\n  driver: rest\n"},
		{"mongo without address", "storage:\n  driver: mongo\n"},
		{"duplicate agent", "lifecycle:\n  agents:\n    - key: manager\n    - key: manager\n"},
		{"missing manager", "lifecycle:\n  agents:\n    - key: coder\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9090\"\nstorage:\n  driver: memory\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Driver)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Duration("5m", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("soon", time.Second))
	assert.Equal(t, time.Second, Duration("-1s", time.Second))
}
