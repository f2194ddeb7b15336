package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventVolumeAlert       EventType = "VOLUME_ALERT"
	EventPatternSignal     EventType = "PATTERN_SIGNAL"
	EventLiquidationUpdate EventType = "LIQUIDATION_UPDATE"
	EventCandleClosed      EventType = "CANDLE_CLOSED"
	EventFeedConnected     EventType = "FEED_CONNECTED"
	EventFeedDisconnected  EventType = "FEED_DISCONNECTED"
	EventEngineStarted     EventType = "ENGINE_STARTED"
	EventEngineStopped     EventType = "ENGINE_STOPPED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Run subscribers in goroutines to avoid blocking the publisher
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishVolumeAlert publishes a volume anomaly event
func (eb *EventBus) PublishVolumeAlert(alertID, symbol, timeframe, side string, multiplier float64, strength int) {
	eb.Publish(Event{
		Type: EventVolumeAlert,
		Data: map[string]interface{}{
			"alert_id":   alertID,
			"symbol":     symbol,
			"timeframe":  timeframe,
			"side":       side,
			"multiplier": multiplier,
			"strength":   strength,
		},
	})
}

// PublishPatternSignal publishes a classified pattern event
func (eb *EventBus) PublishPatternSignal(signalID, asset, patternType, severity string, confidence float64) {
	eb.Publish(Event{
		Type: EventPatternSignal,
		Data: map[string]interface{}{
			"signal_id":    signalID,
			"asset":        asset,
			"pattern_type": patternType,
			"severity":     severity,
			"confidence":   confidence,
		},
	})
}

// PublishLiquidationUpdate publishes an accumulator change for one asset
func (eb *EventBus) PublishLiquidationUpdate(asset, side string, amountUSD, combinedTotal float64) {
	eb.Publish(Event{
		Type: EventLiquidationUpdate,
		Data: map[string]interface{}{
			"asset":          asset,
			"side":           side,
			"amount_usd":     amountUSD,
			"combined_total": combinedTotal,
		},
	})
}

// PublishFeedStatus publishes a feed connect or disconnect event
func (eb *EventBus) PublishFeedStatus(connected bool, feedName string) {
	eventType := EventFeedConnected
	if !connected {
		eventType = EventFeedDisconnected
	}
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"feed": feedName,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
