package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anvil.dev/cli/internal/application/services"
	"anvil.dev/cli/internal/config"
	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/test/testutil"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := config.Load(config.LoadOptions{DataDir: t.TempDir(), Environment: env})
	require.NoError(t, err)
	return cfg
}

func TestNewContainer_RequiresConfig(t *testing.T) {
	_, err := NewContainer(nil, Options{})
	assert.Error(t, err)
}

func TestNewContainer_WiresEveryServerType(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})

	c, err := NewContainer(cfg, Options{})
	require.NoError(t, err)

	for _, st := range domain.ServerTypes {
		assert.Contains(t, c.Sources, st)
	}
	assert.NotNil(t, c.Orchestrator)
	assert.Equal(t, cfg.DataDir, c.Config.DataDir)

	servers, err := c.Orchestrator.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestNewContainer_ProvisionsAgainstUpstream(t *testing.T) {
	upstream := testutil.NewUpstream(t)
	upstream.AddPaperBuild("1.20.1", 10, []byte("paper ten"))
	upstream.AddPaperBuild("1.20.1", 12, []byte("paper twelve"))

	env := upstream.Env()
	env["ANVIL_USER_AGENT"] = "anvil-di-test"
	cfg := loadConfig(t, env)

	c, err := NewContainer(cfg, Options{})
	require.NoError(t, err)

	record, err := c.Orchestrator.CreateServer(context.Background(), services.CreateRequest{
		Name:       "box1",
		ServerType: domain.ServerTypePaper,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, record.BuildID)
	assert.Equal(t, "paper", record.Loader)

	for _, req := range upstream.RequestLog() {
		assert.Equal(t, "anvil-di-test", req.UserAgent, req.Path)
	}
}
