package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/cache"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/messaging"
	"github.com/Additional-Code/harvest/internal/observability"
	"github.com/Additional-Code/harvest/internal/realtime"
	repo "github.com/Additional-Code/harvest/internal/repository/order"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	"github.com/Additional-Code/harvest/internal/service/coupon"
	"github.com/Additional-Code/harvest/internal/service/notification"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/order")

// ErrInvalidTransition is wrapped by errors rejecting a status change the
// state machine does not allow.
var ErrInvalidTransition = errors.New("invalid order status transition")

// Service encapsulates business logic around orders: placement, status
// tracking and the buyer/farmer/admin read paths.
type Service struct {
	conns     *database.Connections
	repo      *repo.Repository
	products  *productrepo.Repository
	coupons   *coupon.Service
	notifier  *notification.Service
	broker    realtime.Broker
	cache     cache.Store
	cacheTTL  time.Duration
	publisher messaging.Client
	messaging messagingConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	pricing   Pricing
	orders    config.Orders
	realtime  config.Realtime
	now       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Repository  *repo.Repository
	Products    *productrepo.Repository
	Coupons     *coupon.Service
	Notifier    *notification.Service
	Broker      realtime.Broker
	Cache       cache.Store
	Publisher   messaging.Client
	Metrics     *observability.Metrics
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:     p.Connections,
		repo:      p.Repository,
		products:  p.Products,
		coupons:   p.Coupons,
		notifier:  p.Notifier,
		broker:    p.Broker,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		metrics:  p.Metrics,
		logger:   p.Logger,
		pricing:  Pricing{FreeDeliveryThreshold: p.Config.Orders.FreeDeliveryThreshold, DeliveryFee: p.Config.Orders.DeliveryFee},
		orders:   p.Config.Orders,
		realtime: p.Config.Realtime,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publishTimeout() time.Duration {
	if s.realtime.PublishTimeout <= 0 {
		return 2 * time.Second
	}
	return s.realtime.PublishTimeout
}

// sideEffectContext detaches post-commit work from the request so a client
// disconnect does not cut it short.
func (s *Service) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.realtime.PublishTimeout * 5
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
