package account

import (
	"time"

	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// SlotSummary は配達枠の要約。
type SlotSummary struct {
	Type  string     `json:"type"`
	Title string     `json:"title"`
	Price float64    `json:"price"`
	Since *time.Time `json:"since"`
	Till  *time.Time `json:"till"`
}

// Summary はアカウント状態の要約。
type Summary struct {
	UserID             int64        `json:"user_id"`
	Name               string       `json:"name"`
	HasAddress         bool         `json:"has_address"`
	AlternateShop      bool         `json:"alternate_shop"`
	FetchedAt          time.Time    `json:"fetched_at"`
	DeliveryText       *string      `json:"delivery_text"`
	NextDeliveryAt     *time.Time   `json:"next_delivery_at"`
	FirstAvailableSlot *SlotSummary `json:"first_available_slot"`
	ExpressSlot        *SlotSummary `json:"express_slot"`
	EcoSlot            *SlotSummary `json:"eco_slot"`
	CartTotalItems     *int         `json:"cart_total_items"`
	CartTotalPrice     *float64     `json:"cart_total_price"`
}

// Summary は最新のスナップショットから要約を作る。未取得の場合は ErrNoSnapshot を返す。
func (a *Account) Summary() (*Summary, error) {
	snap := a.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	s := &Summary{
		HasAddress:    a.HasAddress(),
		AlternateShop: a.alternate,
		FetchedAt:     snap.FetchedAt,
	}
	s.UserID, _ = a.UserID()
	s.Name, _ = a.Name()

	if text, ok := a.DeliveryText(); ok {
		s.DeliveryText = &text
	}
	if at, ok := a.NextDeliveryAt(); ok {
		s.NextDeliveryAt = &at
	}
	if slot, ok := a.FirstAvailableSlot(); ok {
		s.FirstAvailableSlot = summarizeSlot(slot)
	}
	if slot, ok := a.PreselectedSlot("EXPRESS"); ok {
		s.ExpressSlot = summarizeSlot(slot)
	}
	if slot, ok := a.PreselectedSlot("ECO"); ok {
		s.EcoSlot = summarizeSlot(slot)
	}
	if snap.Cart != nil {
		s.CartTotalItems = &snap.Cart.TotalItems
		s.CartTotalPrice = &snap.Cart.TotalPrice
	}
	return s, nil
}

func summarizeSlot(slot rohlik.PreselectedSlot) *SlotSummary {
	out := &SlotSummary{Type: slot.Type, Title: slot.Title, Price: slot.Price}
	if t, ok := slot.Slot.Interval.Start(); ok {
		out.Since = &t
	}
	if t, ok := slot.Slot.Interval.End(); ok {
		out.Till = &t
	}
	return out
}
