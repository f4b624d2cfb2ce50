package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventEngineStarted       EventType = "ENGINE_STARTED"
	EventEngineStopped       EventType = "ENGINE_STOPPED"
	EventTradeClosed         EventType = "TRADE_CLOSED"
	EventModeSwitched        EventType = "MODE_SWITCHED"
	EventProposalCreated     EventType = "PROPOSAL_CREATED"
	EventProposalResolved    EventType = "PROPOSAL_RESOLVED"
	EventAnalysisStarted     EventType = "ANALYSIS_STARTED"
	EventAnalysisFailed      EventType = "ANALYSIS_FAILED"
	EventRiskReduced         EventType = "RISK_REDUCED"
	EventRecoveryComplete    EventType = "RECOVERY_COMPLETE"
	EventEmergencyHalt       EventType = "EMERGENCY_HALT"
	EventTradingResumed      EventType = "TRADING_RESUMED"
	EventDailyTargetHit      EventType = "DAILY_TARGET_HIT"
	EventWinStreakScaled     EventType = "WIN_STREAK_SCALED"
	EventPersistenceDegraded EventType = "PERSISTENCE_DEGRADED"
	EventPersistenceRestored EventType = "PERSISTENCE_RESTORED"
	EventStatusUpdate        EventType = "STATUS_UPDATE"
	EventError               EventType = "ERROR"
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

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeClosed publishes a settled-trade event
func (eb *EventBus) PublishTradeClosed(instrumentID, contractID string, stake, pnl, balance float64, win bool) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"instrument_id": instrumentID,
			"contract_id":   contractID,
			"stake":         stake,
			"pnl":           pnl,
			"balance":       balance,
			"win":           win,
		},
	})
}

// PublishModeSwitched publishes a mode transition event
func (eb *EventBus) PublishModeSwitched(from, to, instrument string, lossStreak int, cumulativeLoss float64) {
	eb.Publish(Event{
		Type: EventModeSwitched,
		Data: map[string]interface{}{
			"from":            from,
			"to":              to,
			"instrument":      instrument,
			"loss_streak":     lossStreak,
			"cumulative_loss": cumulativeLoss,
		},
	})
}

// PublishProposalCreated publishes a new-proposal event
func (eb *EventBus) PublishProposalCreated(proposalID, instrument string, stake, growthRate, takeProfit float64) {
	eb.Publish(Event{
		Type: EventProposalCreated,
		Data: map[string]interface{}{
			"proposal_id": proposalID,
			"instrument":  instrument,
			"stake":       stake,
			"growth_rate": growthRate,
			"take_profit": takeProfit,
		},
	})
}

// PublishProposalResolved publishes a proposal decision event
func (eb *EventBus) PublishProposalResolved(proposalID, decision string) {
	eb.Publish(Event{
		Type: EventProposalResolved,
		Data: map[string]interface{}{
			"proposal_id": proposalID,
			"decision":    decision,
		},
	})
}

// PublishEmergencyHalt publishes an emergency halt event
func (eb *EventBus) PublishEmergencyHalt(reason string) {
	eb.Publish(Event{
		Type: EventEmergencyHalt,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishRiskReduced publishes a recovery stake-reduction event
func (eb *EventBus) PublishRiskReduced(failures int, factor, stake float64) {
	eb.Publish(Event{
		Type: EventRiskReduced,
		Data: map[string]interface{}{
			"failures": failures,
			"factor":   factor,
			"stake":    stake,
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

// BroadcastFunc is a callback for pushing events to connected clients.
// The api package wires it at startup, avoiding an import cycle.
type BroadcastFunc func(data interface{})

var (
	broadcastStatus BroadcastFunc
	broadcastEvent  BroadcastFunc
)

// SetBroadcastStatus sets the callback for status snapshot broadcasts
func SetBroadcastStatus(fn BroadcastFunc) {
	broadcastStatus = fn
}

// SetBroadcastEvent sets the callback for raw event broadcasts
func SetBroadcastEvent(fn BroadcastFunc) {
	broadcastEvent = fn
}

// BroadcastStatus pushes a status snapshot to all connected clients
func BroadcastStatus(data interface{}) {
	if broadcastStatus != nil {
		go broadcastStatus(data)
	}
}

// BroadcastEvent pushes an event to all connected clients
func BroadcastEvent(data interface{}) {
	if broadcastEvent != nil {
		go broadcastEvent(data)
	}
}
