// Package account はショップのアカウント1件を表すファサードを提供する。
//
// 最新のスナップショットを保持し、更新のたびに購読者へ通知する。
// カート操作などの更新系は rohlik.Client へ委譲し、完了後にスナップショットを取り直す。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hitoshi/rohlikhub/internal/delivery"
	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// searchAndAddLimit は SearchAndAdd で検索する件数。
const searchAndAddLimit = 5

var (
	// ErrNoSnapshot はスナップショットをまだ取得していないことを示す。
	ErrNoSnapshot = errors.New("スナップショットがまだ取得されていません")
	// ErrProductNotFound は検索に一致する商品がなかったことを示す。
	ErrProductNotFound = errors.New("商品が見つかりません")
	// ErrInvalidQuantity は数量が1未満であることを示す。
	ErrInvalidQuantity = errors.New("数量は1以上である必要があります")
	// ErrEmptyEntry は買い物エントリに商品名がないことを示す。
	ErrEmptyEntry = errors.New("商品名が空です")
	// ErrNotAddedToCart はショップが商品のカート追加を受け付けなかったことを示す。
	ErrNotAddedToCart = errors.New("商品をカートに追加できませんでした")
)

// Vendor はショップAPIクライアントのインターフェース。
// テスト時にモックに差し替え可能。
type Vendor interface {
	GetData(ctx context.Context) (*rohlik.Snapshot, error)
	AddToCart(ctx context.Context, items []rohlik.CartItemRequest) (*rohlik.AddToCartResult, error)
	SearchProduct(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error)
	GetShoppingList(ctx context.Context, id string) (*rohlik.ShoppingList, error)
	GetCartContent(ctx context.Context) (*rohlik.CartContent, error)
	DeleteFromCart(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error)
	IsAlternateShop() bool
}

// SearchAndAddResult は SearchAndAdd の結果。
type SearchAndAddResult struct {
	Success     bool                      `json:"success"`
	Message     string                    `json:"message"`
	AddedToCart []rohlik.ProductReference `json:"added_to_cart"`
}

// Account はショップのアカウント1件を表す。
// スナップショットの読み取りは複数goroutineから同時に行える。
type Account struct {
	client    Vendor
	logger    *slog.Logger
	parser    *delivery.Parser
	alternate bool

	snapshot atomic.Pointer[rohlik.Snapshot]

	// updateMu は Update の同時実行を防ぐ。
	updateMu sync.Mutex

	mu          sync.Mutex
	subscribers map[uuid.UUID]func()
}

// New はAccountを生成する。ショップ種別に応じて配達案内のロケールを選ぶ。
func New(client Vendor, logger *slog.Logger) *Account {
	alternate := client.IsAlternateShop()
	return &Account{
		client:      client,
		logger:      logger,
		parser:      delivery.MustNewParser(delivery.LocaleFor(alternate)),
		alternate:   alternate,
		subscribers: make(map[uuid.UUID]func()),
	}
}

// Update はショップから全データを取得してスナップショットを差し替え、購読者へ通知する。
// 取得に失敗した場合は以前のスナップショットを維持し、通知しない。
// 通知は updateMu を解放してから行うため、コールバック内で更新系の操作を呼んでもよい。
func (a *Account) Update(ctx context.Context) error {
	if err := a.fetch(ctx); err != nil {
		return err
	}
	a.publish()
	return nil
}

// fetch は updateMu を保持したままスナップショットを取り直す。
func (a *Account) fetch(ctx context.Context) error {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()

	snap, err := a.client.GetData(ctx)
	if err != nil {
		a.logger.Error("アカウント情報の更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("アカウント情報の更新に失敗しました: %w", err)
	}

	a.snapshot.Store(snap)
	a.logger.Info("アカウント情報を更新しました",
		slog.Time("fetched_at", snap.FetchedAt),
	)
	return nil
}

// Subscribe は更新時に呼ばれるコールバックを登録し、解除用のハンドルを返す。
func (a *Account) Subscribe(callback func()) uuid.UUID {
	id := uuid.New()
	a.mu.Lock()
	a.subscribers[id] = callback
	a.mu.Unlock()
	return id
}

// Unsubscribe は登録済みのコールバックを解除する。未登録のハンドルは無視する。
func (a *Account) Unsubscribe(id uuid.UUID) {
	a.mu.Lock()
	delete(a.subscribers, id)
	a.mu.Unlock()
}

// publish は購読者を同期的に呼び出す。
// コールバック内で Subscribe/Unsubscribe できるよう、ロックの外で呼ぶ。
func (a *Account) publish() {
	a.mu.Lock()
	callbacks := make([]func(), 0, len(a.subscribers))
	for _, cb := range a.subscribers {
		callbacks = append(callbacks, cb)
	}
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// refreshAfter は更新系の操作後にスナップショットを取り直す。
// 失敗しても操作自体の結果は変えない。
func (a *Account) refreshAfter(ctx context.Context, operation string) {
	if err := a.Update(ctx); err != nil {
		a.logger.Warn("操作後のアカウント情報の再取得に失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
}

// AddToCart は商品をカートに追加し、スナップショットを更新する。
func (a *Account) AddToCart(ctx context.Context, productID int64, quantity int) (*rohlik.AddToCartResult, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	result, err := a.client.AddToCart(ctx, []rohlik.CartItemRequest{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return nil, err
	}
	a.refreshAfter(ctx, "add_to_cart")
	return result, nil
}

// DeleteFromCart はカートの商品行を削除し、スナップショットを更新する。
func (a *Account) DeleteFromCart(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error) {
	result, err := a.client.DeleteFromCart(ctx, orderFieldID)
	if err != nil {
		return nil, err
	}
	a.refreshAfter(ctx, "delete_from_cart")
	return result, nil
}

// SearchProduct は商品を検索する。該当がない場合は (nil, nil) を返す。
func (a *Account) SearchProduct(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error) {
	return a.client.SearchProduct(ctx, name, limit, favourite)
}

// GetShoppingList は買い物リストを取得する。
func (a *Account) GetShoppingList(ctx context.Context, id string) (*rohlik.ShoppingList, error) {
	return a.client.GetShoppingList(ctx, id)
}

// GetCartContent は現在のカートを取得する。
func (a *Account) GetCartContent(ctx context.Context) (*rohlik.CartContent, error) {
	return a.client.GetCartContent(ctx)
}

// SearchAndAdd は商品名で検索し、最初に一致した商品をカートに追加する。
// 一致する商品がない場合や、ショップが追加を受け付けなかった場合は
// エラーではなく Success=false の結果を返す。
func (a *Account) SearchAndAdd(ctx context.Context, name string, quantity int, favourite bool) (*SearchAndAddResult, error) {
	result, _, err := a.searchAndAdd(ctx, name, quantity, favourite)
	return result, err
}

// searchAndAdd は SearchAndAdd の本体。matched は検索に一致する商品があったかどうか。
func (a *Account) searchAndAdd(ctx context.Context, name string, quantity int, favourite bool) (result *SearchAndAddResult, matched bool, err error) {
	if quantity < 1 {
		return nil, false, ErrInvalidQuantity
	}

	found, err := a.client.SearchProduct(ctx, name, searchAndAddLimit, favourite)
	if err != nil {
		return nil, false, err
	}
	if found == nil || len(found.Results) == 0 {
		return &SearchAndAddResult{
			Success:     false,
			Message:     notFoundMessage(name, favourite),
			AddedToCart: []rohlik.ProductReference{},
		}, false, nil
	}

	product := found.Results[0]
	added, err := a.AddToCart(ctx, product.ID, quantity)
	if err != nil {
		return nil, true, err
	}
	if added == nil || !slices.Contains(added.AddedProducts, product.ID) {
		a.logger.Warn("検索した商品をカートに追加できませんでした",
			slog.String("query", name),
			slog.Int64("product_id", product.ID),
		)
		return &SearchAndAddResult{
			Success:     false,
			Message:     fmt.Sprintf("Product \"%s\" could not be added to the cart.", product.Name),
			AddedToCart: []rohlik.ProductReference{},
		}, true, nil
	}

	a.logger.Info("検索した商品をカートに追加しました",
		slog.String("query", name),
		slog.Int64("product_id", product.ID),
		slog.Int("quantity", quantity),
	)
	return &SearchAndAddResult{
		Success:     true,
		Message:     "",
		AddedToCart: []rohlik.ProductReference{product},
	}, true, nil
}

func notFoundMessage(name string, favourite bool) string {
	scope := ""
	if favourite {
		scope = " in favourites"
	}
	return fmt.Sprintf("No product matched when searching for \"%s\"%s.", name, scope)
}
