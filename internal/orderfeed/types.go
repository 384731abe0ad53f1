// Package orderfeed consumes the brokerage order-event stream and
// exposes the latest observed order state to the reconciliation sweep.
package orderfeed

import (
	"time"

	"position-core/internal/domain"
)

// OrderSide says which leg of the position the order drives.
type OrderSide string

const (
	SideEntry OrderSide = "entry"
	SideExit  OrderSide = "exit"
)

// OrderEvent is one order state change delivered by the feed. Events
// for completed exit orders carry the liquidation facts.
type OrderEvent struct {
	OrderID    string             `json:"orderId"`
	PositionID string             `json:"positionId"`
	UserID     string             `json:"userId"`
	Symbol     string             `json:"symbol"`
	Name       string             `json:"name,omitempty"`
	Side       OrderSide          `json:"side"`
	Status     domain.OrderStatus `json:"status"`

	OpenPrice  float64   `json:"openPrice,omitempty"`
	ClosePrice float64   `json:"closePrice,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Fee        float64   `json:"fee,omitempty"`
	RealizedPL float64   `json:"realizedPl,omitempty"`
	PLRatio    float64   `json:"plRatio,omitempty"`
	OpenedAt   time.Time `json:"openedAt,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LiquidationInfo builds the aggregation input from a completed exit
// event. Returns nil for anything else.
func (e *OrderEvent) LiquidationInfo() *domain.LiquidationInfo {
	if e.Side != SideExit || e.Status != domain.OrderStatusCompleted {
		return nil
	}
	return &domain.LiquidationInfo{
		UserID:     e.UserID,
		PositionID: e.PositionID,
		Symbol:     e.Symbol,
		Name:       e.Name,
		OpenPrice:  e.OpenPrice,
		ClosePrice: e.ClosePrice,
		Amount:     e.Amount,
		OpenedAt:   e.OpenedAt,
		ClosedAt:   e.OccurredAt,
		Fee:        e.Fee,
		RealizedPL: e.RealizedPL,
		PLRatio:    e.PLRatio,
	}
}

// Wire messages. The feed speaks a small JSON protocol: a subscribe
// request answered with a confirmation, then a stream of order-event
// notifications.

type wsRequest struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id"`
	Channel string `json:"channel,omitempty"`
}

type wsSubscribeResponse struct {
	Type         string `json:"type"` // "subscribed"
	ID           uint64 `json:"id"`
	Subscription int64  `json:"subscription"`
}

type wsNotification struct {
	Type         string      `json:"type"` // "order_event"
	Subscription int64       `json:"subscription"`
	Event        *OrderEvent `json:"event"`
}

type wsError struct {
	Type    string `json:"type"` // "error"
	ID      uint64 `json:"id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
