package account

import (
	"time"

	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// preferredSlotTypes は最短配達枠を選ぶときの優先順。
var preferredSlotTypes = []string{"FIRST", "FIRST_CHEAPEST", "RECOMMENDED"}

// Snapshot は最新のスナップショットを返す。未取得の場合はnil。
func (a *Account) Snapshot() *rohlik.Snapshot {
	return a.snapshot.Load()
}

// IsAlternateShop はknuspr.deのアカウントかどうかを返す。
func (a *Account) IsAlternateShop() bool {
	return a.alternate
}

func (a *Account) user() *rohlik.User {
	snap := a.Snapshot()
	if snap == nil || snap.Login == nil || snap.Login.Data == nil {
		return nil
	}
	return snap.Login.Data.User
}

// UserID はログインユーザーのIDを返す。
func (a *Account) UserID() (int64, bool) {
	u := a.user()
	if u == nil {
		return 0, false
	}
	return u.ID, true
}

// Name はログインユーザーの表示名を返す。
func (a *Account) Name() (string, bool) {
	u := a.user()
	if u == nil {
		return "", false
	}
	return u.Name, true
}

// HasAddress は次回配達枠を取得できたかどうか、つまり配達先住所が設定されているかを返す。
func (a *Account) HasAddress() bool {
	snap := a.Snapshot()
	return snap != nil && snap.Raw[rohlik.KeyNextDeliverySlot] != nil
}

func (a *Account) firstAnnouncement() (rohlik.Announcement, bool) {
	snap := a.Snapshot()
	if snap == nil || len(snap.DeliveryAnnouncements) == 0 {
		return rohlik.Announcement{}, false
	}
	return snap.DeliveryAnnouncements[0], true
}

// DeliveryText は最初の配達案内をタグを除いたテキストで返す。
func (a *Account) DeliveryText() (string, bool) {
	ann, ok := a.firstAnnouncement()
	if !ok {
		return "", false
	}
	return a.parser.PlainText(ann.Content), true
}

// NextDeliveryAt は最初の配達案内から配達予定時刻を抽出する。
func (a *Account) NextDeliveryAt() (time.Time, bool) {
	ann, ok := a.firstAnnouncement()
	if !ok {
		return time.Time{}, false
	}
	return a.parser.Extract(ann.Content)
}

func (a *Account) preselectedSlots() []rohlik.PreselectedSlot {
	snap := a.Snapshot()
	if snap == nil || snap.NextDeliverySlot == nil || snap.NextDeliverySlot.Data == nil {
		return nil
	}
	return snap.NextDeliverySlot.Data.PreselectedSlots
}

// PreselectedSlot は指定した種別（EXPRESS、ECOなど）の提案配達枠を返す。
func (a *Account) PreselectedSlot(slotType string) (rohlik.PreselectedSlot, bool) {
	for _, slot := range a.preselectedSlots() {
		if slot.Type == slotType {
			return slot, true
		}
	}
	return rohlik.PreselectedSlot{}, false
}

// FirstAvailableSlot は最短の配達枠を返す。
// FIRST、FIRST_CHEAPEST、RECOMMENDED の順に探し、どれもなければ先頭の枠を返す。
func (a *Account) FirstAvailableSlot() (rohlik.PreselectedSlot, bool) {
	for _, t := range preferredSlotTypes {
		if slot, ok := a.PreselectedSlot(t); ok {
			return slot, true
		}
	}
	slots := a.preselectedSlots()
	if len(slots) == 0 {
		return rohlik.PreselectedSlot{}, false
	}
	return slots[0], true
}
