package coupon

import "go.uber.org/fx"

// Module provides the coupon service to Fx.
var Module = fx.Provide(NewService)
