package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// --- モック定義 ---

// mockVendor はショップAPIクライアントのモック。
type mockVendor struct {
	mu sync.Mutex

	alternate bool

	getDataFunc         func(ctx context.Context) (*rohlik.Snapshot, error)
	addToCartFunc       func(ctx context.Context, items []rohlik.CartItemRequest) (*rohlik.AddToCartResult, error)
	searchProductFunc   func(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error)
	getShoppingListFunc func(ctx context.Context, id string) (*rohlik.ShoppingList, error)
	getCartContentFunc  func(ctx context.Context) (*rohlik.CartContent, error)
	deleteFromCartFunc  func(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error)

	getDataCalls   int
	addedItems     [][]rohlik.CartItemRequest
	searchLimits   []int
	deletedFields  []string
	searchQueries  []string
	favouriteFlags []bool
}

func (m *mockVendor) GetData(ctx context.Context) (*rohlik.Snapshot, error) {
	m.mu.Lock()
	m.getDataCalls++
	m.mu.Unlock()
	if m.getDataFunc != nil {
		return m.getDataFunc(ctx)
	}
	return &rohlik.Snapshot{FetchedAt: time.Now()}, nil
}

func (m *mockVendor) AddToCart(ctx context.Context, items []rohlik.CartItemRequest) (*rohlik.AddToCartResult, error) {
	m.mu.Lock()
	m.addedItems = append(m.addedItems, items)
	m.mu.Unlock()
	if m.addToCartFunc != nil {
		return m.addToCartFunc(ctx, items)
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return &rohlik.AddToCartResult{AddedProducts: ids}, nil
}

func (m *mockVendor) SearchProduct(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
	m.mu.Lock()
	m.searchQueries = append(m.searchQueries, name)
	m.searchLimits = append(m.searchLimits, limit)
	m.favouriteFlags = append(m.favouriteFlags, favourite)
	m.mu.Unlock()
	if m.searchProductFunc != nil {
		return m.searchProductFunc(ctx, name, limit, favourite)
	}
	return nil, nil
}

func (m *mockVendor) GetShoppingList(ctx context.Context, id string) (*rohlik.ShoppingList, error) {
	if m.getShoppingListFunc != nil {
		return m.getShoppingListFunc(ctx, id)
	}
	return &rohlik.ShoppingList{Name: "list", ProductsInList: []json.RawMessage{}}, nil
}

func (m *mockVendor) GetCartContent(ctx context.Context) (*rohlik.CartContent, error) {
	if m.getCartContentFunc != nil {
		return m.getCartContentFunc(ctx)
	}
	return &rohlik.CartContent{Products: []rohlik.CartLineItem{}}, nil
}

func (m *mockVendor) DeleteFromCart(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error) {
	m.mu.Lock()
	m.deletedFields = append(m.deletedFields, orderFieldID)
	m.mu.Unlock()
	if m.deleteFromCartFunc != nil {
		return m.deleteFromCartFunc(ctx, orderFieldID)
	}
	return &rohlik.DeleteResult{StatusCode: 204}, nil
}

func (m *mockVendor) IsAlternateShop() bool {
	return m.alternate
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestAccount(v *mockVendor) *Account {
	return New(v, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

var errVendorDown = errors.New("vendor down")

// --- Update / 購読 ---

func TestAccount_Update_StoresSnapshotAndNotifies(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	v := &mockVendor{getDataFunc: func(ctx context.Context) (*rohlik.Snapshot, error) {
		return &rohlik.Snapshot{FetchedAt: fetchedAt}, nil
	}}
	a := newTestAccount(v)

	if a.Snapshot() != nil {
		t.Fatal("更新前のスナップショットは nil であるべき")
	}

	var calls []string
	a.Subscribe(func() { calls = append(calls, "first") })
	a.Subscribe(func() { calls = append(calls, "second") })

	if err := a.Update(context.Background()); err != nil {
		t.Fatalf("Update がエラーを返した: %v", err)
	}

	if got := a.Snapshot(); got == nil || !got.FetchedAt.Equal(fetchedAt) {
		t.Errorf("Snapshot = %+v", got)
	}
	// 通知は Update から戻る前に完了している
	if len(calls) != 2 {
		t.Errorf("通知回数 = %d, want 2", len(calls))
	}
}

func TestAccount_Unsubscribe(t *testing.T) {
	a := newTestAccount(&mockVendor{})

	var kept, removed int
	a.Subscribe(func() { kept++ })
	id := a.Subscribe(func() { removed++ })
	a.Unsubscribe(id)
	// 未登録のハンドルは無視される
	a.Unsubscribe(id)

	if err := a.Update(context.Background()); err != nil {
		t.Fatalf("Update がエラーを返した: %v", err)
	}
	if kept != 1 {
		t.Errorf("登録中の購読者の通知回数 = %d, want 1", kept)
	}
	if removed != 0 {
		t.Errorf("解除済みの購読者が %d 回呼ばれた", removed)
	}
}

func TestAccount_Update_FailureKeepsPreviousSnapshot(t *testing.T) {
	first := &rohlik.Snapshot{FetchedAt: time.Now()}
	fail := false
	v := &mockVendor{getDataFunc: func(ctx context.Context) (*rohlik.Snapshot, error) {
		if fail {
			return nil, errVendorDown
		}
		return first, nil
	}}

	var buf bytes.Buffer
	a := New(v, newTestLogger(&buf))
	if err := a.Update(context.Background()); err != nil {
		t.Fatalf("Update がエラーを返した: %v", err)
	}

	notified := 0
	a.Subscribe(func() { notified++ })

	fail = true
	err := a.Update(context.Background())
	if !errors.Is(err, errVendorDown) {
		t.Fatalf("err = %v, want errVendorDown", err)
	}
	if a.Snapshot() != first {
		t.Error("失敗時は以前のスナップショットを維持するべき")
	}
	if notified != 0 {
		t.Errorf("失敗時に %d 回通知された", notified)
	}
	if !strings.Contains(buf.String(), "アカウント情報の更新に失敗しました") {
		t.Errorf("失敗がログに記録されていない: %s", buf.String())
	}
}

func TestAccount_Update_SubscriberCanMutate(t *testing.T) {
	v := &mockVendor{}
	a := newTestAccount(v)

	// 購読者から1回だけカートへ追加する。追加後の再取得で再び通知される
	added := false
	a.Subscribe(func() {
		if added {
			return
		}
		added = true
		if _, err := a.AddToCart(context.Background(), 1002, 1); err != nil {
			t.Errorf("購読者内の AddToCart がエラーを返した: %v", err)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- a.Update(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Update がエラーを返した: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("購読者内の更新系操作で Update が完了しなかった")
	}

	if !added {
		t.Error("購読者が呼ばれていない")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.addedItems) != 1 {
		t.Errorf("追加リクエスト数 = %d, want 1", len(v.addedItems))
	}
	// Update と追加後の再取得で2回
	if v.getDataCalls != 2 {
		t.Errorf("GetData 呼び出し回数 = %d, want 2", v.getDataCalls)
	}
}

// --- 更新系 ---

func TestAccount_AddToCart_RefreshesSnapshot(t *testing.T) {
	v := &mockVendor{}
	a := newTestAccount(v)

	got, err := a.AddToCart(context.Background(), 1002, 3)
	if err != nil {
		t.Fatalf("AddToCart がエラーを返した: %v", err)
	}
	if len(got.AddedProducts) != 1 || got.AddedProducts[0] != 1002 {
		t.Errorf("AddedProducts = %v, want [1002]", got.AddedProducts)
	}
	if len(v.addedItems) != 1 || v.addedItems[0][0] != (rohlik.CartItemRequest{ProductID: 1002, Quantity: 3}) {
		t.Errorf("追加リクエスト = %+v", v.addedItems)
	}
	if v.getDataCalls != 1 {
		t.Errorf("GetData 呼び出し回数 = %d, want 1", v.getDataCalls)
	}
	if a.Snapshot() == nil {
		t.Error("追加後にスナップショットが更新されていない")
	}
}

func TestAccount_AddToCart_InvalidQuantity(t *testing.T) {
	v := &mockVendor{}
	a := newTestAccount(v)

	for _, qty := range []int{0, -1} {
		if _, err := a.AddToCart(context.Background(), 1, qty); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("quantity=%d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
	if len(v.addedItems) != 0 {
		t.Errorf("不正な数量でショップが呼ばれた: %+v", v.addedItems)
	}
}

func TestAccount_AddToCart_FailureSkipsRefresh(t *testing.T) {
	v := &mockVendor{addToCartFunc: func(ctx context.Context, items []rohlik.CartItemRequest) (*rohlik.AddToCartResult, error) {
		return nil, &rohlik.InvalidCredentialsError{Message: "bad"}
	}}
	a := newTestAccount(v)

	_, err := a.AddToCart(context.Background(), 1, 1)
	if !rohlik.IsAuthError(err) {
		t.Fatalf("err = %v, want 認証エラー", err)
	}
	if v.getDataCalls != 0 {
		t.Errorf("失敗時に GetData が %d 回呼ばれた", v.getDataCalls)
	}
}

func TestAccount_AddToCart_RefreshFailureKeepsResult(t *testing.T) {
	v := &mockVendor{getDataFunc: func(ctx context.Context) (*rohlik.Snapshot, error) {
		return nil, errVendorDown
	}}

	var buf bytes.Buffer
	a := New(v, newTestLogger(&buf))

	got, err := a.AddToCart(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("再取得の失敗で AddToCart がエラーを返してはならない: %v", err)
	}
	if len(got.AddedProducts) != 1 {
		t.Errorf("AddedProducts = %v", got.AddedProducts)
	}
	if !strings.Contains(buf.String(), `"operation":"add_to_cart"`) {
		t.Errorf("再取得の失敗がログに記録されていない: %s", buf.String())
	}
}

func TestAccount_DeleteFromCart_RefreshesSnapshot(t *testing.T) {
	v := &mockVendor{}
	a := newTestAccount(v)

	got, err := a.DeleteFromCart(context.Background(), "5002")
	if err != nil {
		t.Fatalf("DeleteFromCart がエラーを返した: %v", err)
	}
	if got.StatusCode != 204 {
		t.Errorf("StatusCode = %d, want 204", got.StatusCode)
	}
	if len(v.deletedFields) != 1 || v.deletedFields[0] != "5002" {
		t.Errorf("削除対象 = %v", v.deletedFields)
	}
	if v.getDataCalls != 1 {
		t.Errorf("GetData 呼び出し回数 = %d, want 1", v.getDataCalls)
	}
}

func TestAccount_DeleteFromCart_Failure(t *testing.T) {
	v := &mockVendor{deleteFromCartFunc: func(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error) {
		return nil, &rohlik.APIRequestFailedError{Endpoint: "cart_delete", Err: rohlik.ErrRequestFailed}
	}}
	a := newTestAccount(v)

	if _, err := a.DeleteFromCart(context.Background(), "x"); !errors.Is(err, rohlik.ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
	if v.getDataCalls != 0 {
		t.Errorf("失敗時に GetData が %d 回呼ばれた", v.getDataCalls)
	}
}

func TestAccount_PassThroughReads(t *testing.T) {
	v := &mockVendor{
		getShoppingListFunc: func(ctx context.Context, id string) (*rohlik.ShoppingList, error) {
			return &rohlik.ShoppingList{Name: "list-" + id}, nil
		},
		getCartContentFunc: func(ctx context.Context) (*rohlik.CartContent, error) {
			return &rohlik.CartContent{TotalItems: 4}, nil
		},
	}
	a := newTestAccount(v)

	list, err := a.GetShoppingList(context.Background(), "42")
	if err != nil || list.Name != "list-42" {
		t.Errorf("GetShoppingList = %+v, %v", list, err)
	}
	cart, err := a.GetCartContent(context.Background())
	if err != nil || cart.TotalItems != 4 {
		t.Errorf("GetCartContent = %+v, %v", cart, err)
	}
	if v.getDataCalls != 0 {
		t.Errorf("読み取り系で GetData が %d 回呼ばれた", v.getDataCalls)
	}
}

// --- SearchAndAdd ---

func TestAccount_SearchAndAdd_AddsFirstResult(t *testing.T) {
	v := &mockVendor{searchProductFunc: func(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
		return &rohlik.SearchResults{Results: []rohlik.ProductReference{
			{ID: 11, Name: "Rohlík tukový", Price: "3.9 CZK"},
			{ID: 12, Name: "Rohlík celozrnný", Price: "5.9 CZK"},
		}}, nil
	}}
	a := newTestAccount(v)

	got, err := a.SearchAndAdd(context.Background(), "rohlík", 4, false)
	if err != nil {
		t.Fatalf("SearchAndAdd がエラーを返した: %v", err)
	}

	if !got.Success || got.Message != "" {
		t.Errorf("結果 = %+v", got)
	}
	if len(got.AddedToCart) != 1 || got.AddedToCart[0].ID != 11 {
		t.Errorf("AddedToCart = %+v, want ID 11", got.AddedToCart)
	}
	if v.searchLimits[0] != 5 {
		t.Errorf("検索件数 = %d, want 5", v.searchLimits[0])
	}
	if len(v.addedItems) != 1 || v.addedItems[0][0] != (rohlik.CartItemRequest{ProductID: 11, Quantity: 4}) {
		t.Errorf("追加リクエスト = %+v", v.addedItems)
	}
	if v.getDataCalls != 1 {
		t.Errorf("GetData 呼び出し回数 = %d, want 1", v.getDataCalls)
	}
}

func TestAccount_SearchAndAdd_NoMatch(t *testing.T) {
	tests := []struct {
		name      string
		favourite bool
		want      string
	}{
		{"通常検索", false, `No product matched when searching for "kaviár".`},
		{"お気に入り", true, `No product matched when searching for "kaviár" in favourites.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVendor{}
			a := newTestAccount(v)

			got, err := a.SearchAndAdd(context.Background(), "kaviár", 1, tt.favourite)
			if err != nil {
				t.Fatalf("一致なしでエラーを返してはならない: %v", err)
			}
			if got.Success {
				t.Error("Success = true, want false")
			}
			if got.Message != tt.want {
				t.Errorf("Message = %q, want %q", got.Message, tt.want)
			}
			if got.AddedToCart == nil || len(got.AddedToCart) != 0 {
				t.Errorf("AddedToCart = %v, want empty", got.AddedToCart)
			}
			if len(v.addedItems) != 0 {
				t.Error("一致なしでカートに追加された")
			}
			if v.favouriteFlags[0] != tt.favourite {
				t.Errorf("favourite = %v, want %v", v.favouriteFlags[0], tt.favourite)
			}

			b, _ := json.Marshal(got)
			if !strings.Contains(string(b), `"added_to_cart":[]`) {
				t.Errorf("JSON = %s", b)
			}
		})
	}
}

func TestAccount_SearchAndAdd_RejectedByShop(t *testing.T) {
	v := &mockVendor{
		searchProductFunc: func(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
			return &rohlik.SearchResults{Results: []rohlik.ProductReference{{ID: 11, Name: "Rohlík tukový"}}}, nil
		},
		addToCartFunc: func(ctx context.Context, items []rohlik.CartItemRequest) (*rohlik.AddToCartResult, error) {
			return &rohlik.AddToCartResult{AddedProducts: []int64{}}, nil
		},
	}
	var buf bytes.Buffer
	a := New(v, newTestLogger(&buf))

	got, err := a.SearchAndAdd(context.Background(), "rohlík", 1, false)
	if err != nil {
		t.Fatalf("SearchAndAdd がエラーを返した: %v", err)
	}
	if got.Success {
		t.Error("追加されなかった商品で Success = true になった")
	}
	if len(got.AddedToCart) != 0 {
		t.Errorf("AddedToCart = %+v, want empty", got.AddedToCart)
	}
	if got.Message != `Product "Rohlík tukový" could not be added to the cart.` {
		t.Errorf("Message = %q", got.Message)
	}
	if !strings.Contains(buf.String(), "検索した商品をカートに追加できませんでした") {
		t.Errorf("警告ログが出力されていない: %s", buf.String())
	}

	_, err = a.AddShoppingEntry(context.Background(), "2 rohlík")
	if !errors.Is(err, ErrNotAddedToCart) {
		t.Errorf("AddShoppingEntry err = %v, want ErrNotAddedToCart", err)
	}
	if errors.Is(err, ErrProductNotFound) {
		t.Error("追加拒否を商品なしとして扱ってはならない")
	}
}

func TestAccount_SearchAndAdd_SearchErrorPropagates(t *testing.T) {
	v := &mockVendor{searchProductFunc: func(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
		return nil, &rohlik.APIRequestFailedError{Endpoint: "search", Err: errVendorDown}
	}}
	a := newTestAccount(v)

	if _, err := a.SearchAndAdd(context.Background(), "mléko", 1, false); !errors.Is(err, errVendorDown) {
		t.Errorf("err = %v, want errVendorDown", err)
	}
}

// --- AddShoppingEntry ---

func TestParseShoppingEntry(t *testing.T) {
	tests := []struct {
		in       string
		name     string
		quantity int
	}{
		{"rohlík", "rohlík", 1},
		{"2 rohlíky", "rohlíky", 2},
		{"rohlík (3)", "rohlík", 3},
		{"2 rohlíky (5)", "rohlíky", 5},
		{"  mléko polotučné  ", "mléko polotučné", 1},
		{"10 vajec", "vajec", 10},
		{"2", "2", 1},
		{"", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, qty := ParseShoppingEntry(tt.in)
			if name != tt.name || qty != tt.quantity {
				t.Errorf("ParseShoppingEntry(%q) = (%q, %d), want (%q, %d)", tt.in, name, qty, tt.name, tt.quantity)
			}
		})
	}
}

func TestAccount_AddShoppingEntry(t *testing.T) {
	v := &mockVendor{searchProductFunc: func(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
		return &rohlik.SearchResults{Results: []rohlik.ProductReference{{ID: 99, Name: name}}}, nil
	}}
	a := newTestAccount(v)

	got, err := a.AddShoppingEntry(context.Background(), "2 rohlíky (5)")
	if err != nil {
		t.Fatalf("AddShoppingEntry がエラーを返した: %v", err)
	}
	if !got.Success {
		t.Errorf("結果 = %+v", got)
	}
	if v.searchQueries[0] != "rohlíky" {
		t.Errorf("検索語 = %q, want rohlíky", v.searchQueries[0])
	}
	if v.addedItems[0][0].Quantity != 5 {
		t.Errorf("数量 = %d, want 5", v.addedItems[0][0].Quantity)
	}
}

func TestAccount_AddShoppingEntry_NotFound(t *testing.T) {
	a := newTestAccount(&mockVendor{})

	_, err := a.AddShoppingEntry(context.Background(), "jednorožec")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
	if !strings.Contains(err.Error(), "jednorožec") {
		t.Errorf("エラーに商品名が含まれていない: %v", err)
	}
}

func TestAccount_AddShoppingEntry_Empty(t *testing.T) {
	v := &mockVendor{}
	a := newTestAccount(v)

	if _, err := a.AddShoppingEntry(context.Background(), "   "); !errors.Is(err, ErrEmptyEntry) {
		t.Errorf("err = %v, want ErrEmptyEntry", err)
	}
	if len(v.searchQueries) != 0 {
		t.Error("空のエントリで検索された")
	}
}
