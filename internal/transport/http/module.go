package http

import (
	"go.uber.org/fx"

	accounttransport "github.com/Additional-Code/harvest/internal/transport/http/account"
	admintransport "github.com/Additional-Code/harvest/internal/transport/http/admin"
	notificationtransport "github.com/Additional-Code/harvest/internal/transport/http/notification"
	ordertransport "github.com/Additional-Code/harvest/internal/transport/http/order"
	producttransport "github.com/Additional-Code/harvest/internal/transport/http/product"
	realtimetransport "github.com/Additional-Code/harvest/internal/transport/http/realtime"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	accounttransport.Module,
	producttransport.Module,
	ordertransport.Module,
	notificationtransport.Module,
	admintransport.Module,
	realtimetransport.Module,
)
