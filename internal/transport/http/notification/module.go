package notification

import "go.uber.org/fx"

// Module wires HTTP notification handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
