package exercises

import (
	"go.uber.org/fx"
)

// Module provides the exercise catalog domain
var Module = fx.Module("exercises",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
