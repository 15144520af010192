package rohlik

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const nextDeliverySlotPath = "/services/frontend-service/timeslots-api/0"

// readEndpoint は集約対象の読み取り専用エンドポイント。
type readEndpoint struct {
	key   string
	path  string
	query url.Values
}

// readEndpoints は next_delivery_slot と cart を除く固定の取得対象。
var readEndpoints = []readEndpoint{
	{key: KeyDelivery, path: "/services/frontend-service/first-delivery", query: url.Values{"reasonableDeliveryTime": {"true"}}},
	{key: KeyNextOrder, path: "/api/v3/orders/upcoming"},
	{key: KeyAnnouncements, path: "/services/frontend-service/announcements/top"},
	{key: KeyBags, path: "/api/v1/reusable-bags/user-info"},
	{key: KeyTimeslot, path: "/services/frontend-service/v1/timeslot-reservation"},
	{key: KeyLastOrder, path: "/api/v3/orders/delivered", query: url.Values{"offset": {"0"}, "limit": {"1"}}},
	{key: KeyPremiumProfile, path: "/services/frontend-service/premium/profile"},
	{key: KeyDeliveryAnnouncements, path: "/services/frontend-service/announcements/delivery"},
}

// GetData はログインしたセッションで全エンドポイントを取得し、スナップショットを返す。
//
// ログインの失敗はそのままエラーとして返し、スナップショットは返さない。
// 個々のエンドポイントの失敗はログに記録して値をnilとし、他のエンドポイントには影響しない。
// 住所が未設定の場合、next_delivery_slot はリクエストせずにnilとする。
func (c *Client) GetData(ctx context.Context) (*Snapshot, error) {
	s, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	login, err := c.Login(ctx, s)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]json.RawMessage, len(SnapshotKeys))
	raw[KeyLogin] = login.Raw

	endpoints := readEndpoints
	if slot, err := nextDeliverySlotEndpoint(s); err == nil {
		endpoints = append(append([]readEndpoint{}, readEndpoints...), slot)
	} else {
		c.logger.Info("配達先住所が未設定のため次回配達枠の取得をスキップします")
		raw[KeyNextDeliverySlot] = nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		cart *CartContent
	)
	for _, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := c.fetchRaw(ctx, s, ep)
			mu.Lock()
			raw[ep.key] = body
			mu.Unlock()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		content, err := c.fetchCart(ctx, s)
		if err != nil {
			c.logger.Error("カートの取得に失敗しました", slog.String("error", err.Error()))
			return
		}
		b, err := json.Marshal(content)
		if err != nil {
			c.logger.Error("カートのエンコードに失敗しました", slog.String("error", err.Error()))
			return
		}
		mu.Lock()
		raw[KeyCart] = b
		cart = content
		mu.Unlock()
	}()

	wg.Wait()

	return decodeSnapshot(raw, login, cart, time.Now(), c.logger), nil
}

// nextDeliverySlotEndpoint は住所IDを必要とする次回配達枠のエンドポイントを組み立てる。
func nextDeliverySlotEndpoint(s *Session) (readEndpoint, error) {
	if err := s.RequireAddress(); err != nil {
		return readEndpoint{}, err
	}
	return readEndpoint{
		key:  KeyNextDeliverySlot,
		path: nextDeliverySlotPath,
		query: url.Values{
			"userId":                 {strconv.FormatInt(s.UserID, 10)},
			"addressId":              {strconv.FormatInt(*s.AddressID, 10)},
			"reasonableDeliveryTime": {"true"},
		},
	}, nil
}

// fetchRaw は1つのエンドポイントを取得する。失敗時はログに記録してnilを返す。
func (c *Client) fetchRaw(ctx context.Context, s *Session, ep readEndpoint) json.RawMessage {
	resp, err := c.do(ctx, s, ep.key, "GET", ep.path, ep.query, nil)
	if err == nil {
		err = resp.ok()
	}
	if err == nil && !json.Valid(resp.body) {
		err = &APIRequestFailedError{Endpoint: ep.key, Err: errInvalidJSON}
	}
	if err != nil {
		c.logger.Error("エンドポイントの取得に失敗しました",
			slog.String("endpoint", ep.key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return json.RawMessage(resp.body)
}
