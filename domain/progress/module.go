package progress

import (
	"go.uber.org/fx"
)

// Module provides the user progress domain
var Module = fx.Module("progress",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
