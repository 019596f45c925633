package pubsub

import (
	"context"
	"fmt"
	"sync"

	"shopify-entity-sync/internal/domain"

	"github.com/rs/zerolog"
)

// EntityEventChannel represents a subscription channel
type EntityEventChannel struct {
	ID     string
	Filter *EntityEventFilter
	Events chan *domain.EntityUsageEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// EntityEventFilter filters counter events
type EntityEventFilter struct {
	EntityTypes []domain.EntityKind // Filter by entity type
	Shop        string              // Filter by a shop listed on the record
}

// EntityEventPubSub fans committed counter transitions out to subscribers
type EntityEventPubSub struct {
	mu         sync.RWMutex
	channels   map[string]*EntityEventChannel
	logger     zerolog.Logger
	bufferSize int
	nextID     int64
	idMu       sync.Mutex
}

// NewEntityEventPubSub creates a new pub/sub with per-subscriber buffers of bufferSize
func NewEntityEventPubSub(logger zerolog.Logger, bufferSize int) *EntityEventPubSub {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &EntityEventPubSub{
		channels:   make(map[string]*EntityEventChannel),
		logger:     logger,
		bufferSize: bufferSize,
	}
}

// Subscribe creates a new subscription channel that is removed when ctx is done
func (ps *EntityEventPubSub) Subscribe(ctx context.Context, filter *EntityEventFilter) *EntityEventChannel {
	ps.idMu.Lock()
	id := ps.generateID()
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &EntityEventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.EntityUsageEvent, ps.bufferSize),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Interface("filter", filter).
		Msg("Entity event subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel
func (ps *EntityEventPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Entity event subscription removed")
}

// Publish broadcasts an event to all matching subscribers without blocking. Slow
// subscribers lose events.
func (ps *EntityEventPubSub) Publish(event *domain.EntityUsageEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	publishedCount := 0
	for _, channel := range ps.channels {
		if !matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
			publishedCount++
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping event")
		}
	}

	if publishedCount > 0 {
		ps.logger.Debug().
			Str("kind", string(event.Kind)).
			Str("entityType", string(event.Usage.EntityType)).
			Int("subscribers", publishedCount).
			Msg("Published entity event to subscribers")
	}
}

func matchesFilter(event *domain.EntityUsageEvent, filter *EntityEventFilter) bool {
	if filter == nil {
		return true
	}

	if len(filter.EntityTypes) > 0 {
		typeMatch := false
		for _, kind := range filter.EntityTypes {
			if event.Usage.EntityType == kind {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if filter.Shop != "" {
		for _, shop := range event.Usage.ShopDomains {
			if shop == filter.Shop {
				return true
			}
		}
		return false
	}

	return true
}

func (ps *EntityEventPubSub) generateID() string {
	ps.nextID++
	return fmt.Sprintf("channel-%d", ps.nextID)
}

// Stats returns pub/sub statistics
func (ps *EntityEventPubSub) Stats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
