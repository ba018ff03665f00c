// Package notify рассылает события ядра (возможности, сделки, риск) подписчикам:
// WebSocket хабу дашборда и, при настроенном URL, в NATS.
package notify

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType - тип события
type EventType string

const (
	EventOpportunity EventType = "opportunity"
	EventTrade       EventType = "trade"
	EventRisk        EventType = "risk"
)

// Event - событие для рассылки
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent создаёт событие с текущим временем (UTC)
func NewEvent(t EventType, data interface{}) Event {
	return Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// Encode сериализует событие в JSON
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// RiskEvent - изменение состояния риск-движка
type RiskEvent struct {
	Reason           string `json:"reason"` // kill_switch_activated, daily_reset
	KillSwitchActive bool   `json:"kill_switch_active"`
	DailyPnl         string `json:"daily_pnl"`
}

// Publisher - получатель событий
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop - ничего не делает
type Nop struct{}

// Publish ничего не делает
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi рассылает событие всем получателям; ошибки объединяются, рассылка не прерывается
type Multi []Publisher

// Publish отправляет событие каждому получателю
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster - рассылка готового сообщения всем клиентам (websocket.Hub)
type Broadcaster interface {
	Broadcast(data []byte)
}

// HubPublisher публикует события в WebSocket хаб
type HubPublisher struct {
	hub Broadcaster
}

// NewHubPublisher создаёт публикатор поверх хаба
func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish сериализует событие и отдаёт хабу
func (h *HubPublisher) Publish(_ context.Context, ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	h.hub.Broadcast(data)
	return nil
}
