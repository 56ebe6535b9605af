package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/cache"
	"github.com/Additional-Code/harvest/internal/entity"
)

// evictionHold is how long an evicted key stays blocked against refills. A
// read that loaded the row before the eviction cannot write it back.
const evictionHold = 5 * time.Second

var evictedMarker = []byte("evicted")

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, cache.OrderKey(id))
	if err != nil {
		return nil, err
	}
	if bytes.Equal(raw, evictedMarker) {
		return nil, cache.ErrCacheMiss
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	raw, err := json.Marshal(order)
	if err == nil {
		_, err = s.cache.SetIfAbsent(ctx, cache.OrderKey(order.ID), raw, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

// evict replaces the cached projection with a short-lived marker. Reads
// treat it as a miss and load from the database until it expires.
func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.OrderKey(id), evictedMarker, evictionHold); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache evict failed", zap.Int64("id", id), zap.Error(err))
	}
}

// Invalidate drops the cached projection of order id, for replicas that
// learn about a change from the event stream.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	s.evict(ctx, id)
}
