package invalidation

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/query"
)

// Catalog and order event types published by the backend
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// Event is the part of a backend event the storefront cares about
type Event struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id,omitempty"`
}

// Invalidator drops cached bindings. *binding.Cache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
	InvalidatePrefix(ctx context.Context, prefix string)
}

// Handler turns backend change events into cache invalidations
type Handler struct {
	cache Invalidator
	log   *zap.Logger
}

func NewHandler(cache Invalidator) *Handler {
	return &Handler{cache: cache, log: logger.Named("invalidation")}
}

// HandleEvent processes an event from Kafka. Malformed and unknown events are
// skipped so one bad message never stalls the consumer.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.log.Warn("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return nil
	}

	switch {
	case event.Type == EventProductCreated:
		h.cache.Invalidate(ctx, query.KeyProducts, query.KeyFeatured)
	case event.Type == EventProductUpdated, event.Type == EventProductDeleted:
		keys := []string{query.KeyProducts, query.KeyFeatured}
		if event.ProductID != "" {
			keys = append(keys, query.ProductKey(event.ProductID))
		}
		h.cache.Invalidate(ctx, keys...)
	case strings.HasPrefix(event.Type, "category."):
		h.cache.Invalidate(ctx, query.KeyCategories, query.KeyProducts)
	case strings.HasPrefix(event.Type, "order."):
		h.cache.InvalidatePrefix(ctx, query.OrdersPrefix)
	default:
		h.log.Debug("ignoring event", zap.String("type", event.Type))
		return nil
	}

	h.log.Info("cache invalidated", zap.String("type", event.Type), zap.String("product_id", event.ProductID))
	return nil
}
