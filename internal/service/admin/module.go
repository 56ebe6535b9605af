package admin

import "go.uber.org/fx"

// Module provides the marketplace administration service to Fx.
var Module = fx.Provide(NewService)
