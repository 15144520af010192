package rohlik

import (
	"encoding/json"
	"log/slog"
	"time"
)

// スナップショットのキー。
const (
	KeyLogin                 = "login"
	KeyDelivery              = "delivery"
	KeyNextOrder             = "next_order"
	KeyAnnouncements         = "announcements"
	KeyBags                  = "bags"
	KeyTimeslot              = "timeslot"
	KeyLastOrder             = "last_order"
	KeyPremiumProfile        = "premium_profile"
	KeyNextDeliverySlot      = "next_delivery_slot"
	KeyDeliveryAnnouncements = "delivery_announcements"
	KeyCart                  = "cart"
)

// SnapshotKeys はスナップショットに必ず含まれるキーの一覧。
var SnapshotKeys = []string{
	KeyLogin,
	KeyDelivery,
	KeyNextOrder,
	KeyAnnouncements,
	KeyBags,
	KeyTimeslot,
	KeyLastOrder,
	KeyPremiumProfile,
	KeyNextDeliverySlot,
	KeyDeliveryAnnouncements,
	KeyCart,
}

// Snapshot は1回の集約で得られたアカウント状態。生成後は変更しない。
//
// Raw は全キーを持ち、取得に失敗したキーの値はnil。login は常に非nil。
// 型付きビューはRawから1回だけデコードされ、取得またはデコードに失敗したものはnil。
type Snapshot struct {
	FetchedAt time.Time
	Raw       map[string]json.RawMessage

	Login                 *LoginResponse
	Delivery              *FirstDelivery
	NextOrders            []Order
	Bags                  *ReusableBags
	Timeslot              *TimeslotReservation
	LastOrders            []Order
	NextDeliverySlot      *DeliverySlots
	DeliveryAnnouncements []Announcement
	Cart                  *CartContent
}

// Get はキーに対応する生の応答を返す。取得に失敗したキーはnilを返す。
func (s *Snapshot) Get(key string) json.RawMessage {
	return s.Raw[key]
}

// MarshalJSON は取得失敗をnullとしてキーごとの生の応答を出力する。
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(SnapshotKeys))
	for _, key := range SnapshotKeys {
		if v := s.Raw[key]; v != nil {
			out[key] = v
		} else {
			out[key] = json.RawMessage("null")
		}
	}
	return json.Marshal(out)
}

// decodeSnapshot は生の応答から型付きビューを組み立てる。
// 欠落または不正な応答はnilのビューとしてログに記録する。
func decodeSnapshot(raw map[string]json.RawMessage, login *LoginResponse, cart *CartContent, fetchedAt time.Time, logger *slog.Logger) *Snapshot {
	for _, key := range SnapshotKeys {
		if _, ok := raw[key]; !ok {
			raw[key] = nil
		}
	}

	s := &Snapshot{
		FetchedAt: fetchedAt,
		Raw:       raw,
		Login:     login,
		Cart:      cart,
	}

	decodeView(raw, KeyDelivery, &s.Delivery, logger)
	decodeView(raw, KeyNextOrder, &s.NextOrders, logger)
	decodeView(raw, KeyBags, &s.Bags, logger)
	decodeView(raw, KeyTimeslot, &s.Timeslot, logger)
	decodeView(raw, KeyLastOrder, &s.LastOrders, logger)
	decodeView(raw, KeyNextDeliverySlot, &s.NextDeliverySlot, logger)

	var announcements *deliveryAnnouncements
	decodeView(raw, KeyDeliveryAnnouncements, &announcements, logger)
	if announcements != nil && announcements.Data != nil {
		s.DeliveryAnnouncements = announcements.Data.Announcements
	}

	return s
}

// decodeView はキーの応答をdstにデコードする。失敗時はdstをゼロ値のままにする。
func decodeView[T any](raw map[string]json.RawMessage, key string, dst *T, logger *slog.Logger) {
	b := raw[key]
	if b == nil {
		return
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		logger.Warn("応答のデコードに失敗しました",
			slog.String("endpoint", key),
			slog.String("error", err.Error()),
		)
		return
	}
	*dst = v
}
