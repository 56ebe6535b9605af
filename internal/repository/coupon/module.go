package coupon

import "go.uber.org/fx"

// Module provides the coupon repository to Fx.
var Module = fx.Provide(NewRepository)
