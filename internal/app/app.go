package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/cache"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/logger"
	"github.com/Additional-Code/harvest/internal/messaging"
	"github.com/Additional-Code/harvest/internal/observability"
	"github.com/Additional-Code/harvest/internal/realtime"
	repositorycoupon "github.com/Additional-Code/harvest/internal/repository/coupon"
	repositorynotification "github.com/Additional-Code/harvest/internal/repository/notification"
	repositoryorder "github.com/Additional-Code/harvest/internal/repository/order"
	repositoryproduct "github.com/Additional-Code/harvest/internal/repository/product"
	repositoryuser "github.com/Additional-Code/harvest/internal/repository/user"
	grpcserver "github.com/Additional-Code/harvest/internal/server/grpc"
	httpserver "github.com/Additional-Code/harvest/internal/server/http"
	serviceaccount "github.com/Additional-Code/harvest/internal/service/account"
	serviceadmin "github.com/Additional-Code/harvest/internal/service/admin"
	servicecatalog "github.com/Additional-Code/harvest/internal/service/catalog"
	servicecoupon "github.com/Additional-Code/harvest/internal/service/coupon"
	servicenotification "github.com/Additional-Code/harvest/internal/service/notification"
	serviceorder "github.com/Additional-Code/harvest/internal/service/order"
	transporthttp "github.com/Additional-Code/harvest/internal/transport/http"
	"github.com/Additional-Code/harvest/internal/worker"
	workerorder "github.com/Additional-Code/harvest/internal/worker/order"
)

// Infrastructure provides configuration, logging and storage connections.
var Infrastructure = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infrastructure,
	cache.Module,
	messaging.Module,
	observability.Module,
	auth.Module,
	realtime.Module,
	repositoryuser.Module,
	repositoryproduct.Module,
	repositorycoupon.Module,
	repositoryorder.Module,
	repositorynotification.Module,
	servicecoupon.Module,
	servicenotification.Module,
	serviceorder.Module,
	servicecatalog.Module,
	serviceaccount.Module,
	serviceadmin.Module,
)

// HTTP wires the HTTP transport and gRPC health server on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
