package admin

import "go.uber.org/fx"

// Module wires HTTP admin handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
