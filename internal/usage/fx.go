package usage

import (
	"github.com/smallbiznis/telcousage/internal/usage/repository"
	"github.com/smallbiznis/telcousage/internal/usage/rollup"
	"github.com/smallbiznis/telcousage/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(rollup.NewService),
)
