package attempts

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/opslab/opslab/domain/progress"
)

// Module provides the attempt recording domain
var Module = fx.Module("attempts",
	fx.Provide(func(db bun.IDB, ledger *progress.Service, log *slog.Logger) *Recorder {
		return NewRecorder(db, ledger, log)
	}),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
