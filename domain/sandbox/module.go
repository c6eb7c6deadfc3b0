package sandbox

import (
	"go.uber.org/fx"
)

// Module provides the sandbox domain: topology management, execution,
// scoring, session registry, deferred submissions, and the sweeper.
var Module = fx.Module("sandbox",
	fx.Provide(NewDockerClient),
	fx.Provide(NewStore),
	fx.Provide(NewTopologyManager),
	fx.Provide(NewExecutor),
	fx.Provide(NewValidator),
	fx.Provide(NewService),
	fx.Provide(NewSweeper),
	fx.Provide(NewSubmissionQueue),
	fx.Provide(NewSubmissionWorker),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartSubmissionWorker),
)
