package injector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/observability/log"
)

func TestProvideLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets:
  - id: 1
    name: robot
    clips: {idle: 2.0, walk: 1.0}
`), 0o600))

	cfg := config.DefaultConfig()
	cfg.Assets.Catalog = path
	cfg.Assets.Preload = true

	loader, err := ProvideLoader(context.Background(), cfg)
	require.NoError(t, err)
	cache, ok := loader.(*asset.Cache)
	require.True(t, ok)
	assert.Equal(t, 1, cache.Len())

	_, err = loader.Load(context.Background(), 2)
	assert.ErrorIs(t, err, asset.ErrUnknownAsset)
}

func TestProvideCodec(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Network.Codec = "msgpack"
	c, err := ProvideCodec(cfg)
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())

	cfg.Network.Codec = "xml"
	_, err = ProvideCodec(cfg)
	assert.Error(t, err)
}

func TestProvideRuntime(t *testing.T) {
	cfg := config.DefaultConfig()
	loader, err := ProvideLoader(context.Background(), cfg)
	require.NoError(t, err)
	c, err := ProvideCodec(cfg)
	require.NoError(t, err)

	rt, cleanup, err := ProvideRuntime(cfg, loader, c, nil, nil, log.NewNop())
	require.NoError(t, err)
	defer cleanup()

	loop := ProvideLoop(cfg, rt, log.NewNop())
	assert.NotNil(t, loop)
	assert.Nil(t, rt.Throttle())
}
