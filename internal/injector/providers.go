package injector

import (
	"context"
	"fmt"

	"github.com/google/wire"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/input"
	"github.com/zeusync/replica/internal/core/netlink"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/core/runtime"
)

// Client is everything the demo binary runs.
type Client struct {
	Config  *config.Config
	Logger  log.Log
	Link    netlink.Link
	Runtime *runtime.Runtime
	Loop    *runtime.Loop
}

var ClientSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	metrics.NewFrame,
	ProvideLoader,
	ProvideCodec,
	ProvideLink,
	ProvideSender,
	ProvideRuntime,
	ProvideLoop,
	wire.Struct(new(Client), "*"),
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

// ProvideLoader serves assets from the configured catalog through a cache.
// Without a catalog every load fails and entities stay unresolved.
func ProvideLoader(ctx context.Context, cfg *config.Config) (asset.Loader, error) {
	catalog := &asset.Catalog{}
	if cfg.Assets.Catalog != "" {
		var err error
		if catalog, err = asset.LoadCatalogFile(cfg.Assets.Catalog); err != nil {
			return nil, fmt.Errorf("loading asset catalog: %w", err)
		}
	}
	cache := asset.NewCache(asset.NewCatalogLoader(catalog, cfg.Assets.Latency), cfg.Assets.CacheShards)
	if cfg.Assets.Preload {
		if err := cache.Preload(ctx, catalog.IDs()...); err != nil {
			return nil, fmt.Errorf("preloading assets: %w", err)
		}
	}
	return cache, nil
}

func ProvideCodec(cfg *config.Config) (codec.Codec, error) {
	return codec.ByName(cfg.Network.Codec)
}

func ProvideLink(ctx context.Context, cfg *config.Config, logger log.Log) (netlink.Link, func(), error) {
	link, err := netlink.Dial(ctx, cfg.Link(), logger)
	if err != nil {
		return nil, nil, err
	}
	return link, func() { _ = link.Close() }, nil
}

func ProvideSender(link netlink.Link, c codec.Codec) input.Sender {
	return netlink.NewUpdateSender(link, c)
}

func ProvideRuntime(cfg *config.Config, loader asset.Loader, c codec.Codec, sender input.Sender, frame *metrics.Frame, logger log.Log) (*runtime.Runtime, func(), error) {
	rt, err := runtime.New(cfg.Runtime(), loader, c, sender, frame, logger)
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}

func ProvideLoop(cfg *config.Config, rt *runtime.Runtime, logger log.Log) *runtime.Loop {
	return runtime.NewLoop(rt, cfg.FrameRate, logger)
}
