//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/replica/internal/config"
)

func InitializeClient(ctx context.Context, cfg *config.Config) (*Client, func(), error) {
	wire.Build(ClientSet)
	return nil, nil, nil
}
