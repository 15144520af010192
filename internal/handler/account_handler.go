package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rohlikhub/internal/account"
	"github.com/hitoshi/rohlikhub/internal/middleware"
	"github.com/hitoshi/rohlikhub/internal/model"
	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 64 << 10

// AccountService はアカウントハンドラーが必要とするファサードのインターフェース。
type AccountService interface {
	Update(ctx context.Context) error
	Snapshot() *rohlik.Snapshot
	Summary() (*account.Summary, error)

	AddToCart(ctx context.Context, productID int64, quantity int) (*rohlik.AddToCartResult, error)
	DeleteFromCart(ctx context.Context, orderFieldID string) (*rohlik.DeleteResult, error)
	SearchProduct(ctx context.Context, name string, limit int, favourite bool) (*rohlik.SearchResults, error)
	SearchAndAdd(ctx context.Context, name string, quantity int, favourite bool) (*account.SearchAndAddResult, error)
	AddShoppingEntry(ctx context.Context, text string) (*account.SearchAndAddResult, error)
	GetShoppingList(ctx context.Context, id string) (*rohlik.ShoppingList, error)
	GetCartContent(ctx context.Context) (*rohlik.CartContent, error)
}

// AccountHandler はアカウント操作のHTTPハンドラー。
type AccountHandler struct {
	service AccountService
	logger  *slog.Logger
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// --- リクエスト型 ---

// addCartItemRequest はカート追加リクエストのボディ。quantity省略時は1。
type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

// searchAndAddRequest は検索して追加するリクエストのボディ。
type searchAndAddRequest struct {
	ProductName string `json:"product_name"`
	Quantity    *int   `json:"quantity"`
	Favourite   bool   `json:"favourite"`
}

// shoppingEntryRequest は自由入力の買い物エントリのボディ。
type shoppingEntryRequest struct {
	Text string `json:"text"`
}

// decodeBody はリクエストボディをJSONとしてデコードする。失敗時は400を書き込み false を返す。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

func quantityOrDefault(q *int) int {
	if q == nil {
		return 1
	}
	return *q
}

// Summary はアカウント状態の要約を返す。
// GET /api/account
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary()
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Snapshot は最新スナップショットの全キーを返す。取得に失敗したキーはnull。
// GET /api/snapshot
func (h *AccountHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	if snap == nil {
		handleServiceError(w, r, h.logger, account.ErrNoSnapshot)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Refresh はショップから全データを取り直し、要約を返す。
// POST /api/snapshot/refresh
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Update(r.Context()); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.Summary(w, r)
}

// Cart は現在のカートを返す。
// GET /api/cart
func (h *AccountHandler) Cart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCartContent(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddCartItem は商品をカートに追加する。
// POST /api/cart/items
func (h *AccountHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		writeInvalidRequest(w, "product_id が必要です")
		return
	}

	result, err := h.service.AddToCart(r.Context(), req.ProductID, quantityOrDefault(req.Quantity))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeleteCartItem はカートの商品行を削除する。
// DELETE /api/cart/items/{orderFieldId}
func (h *AccountHandler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	orderFieldID := chi.URLParam(r, "orderFieldId")
	if orderFieldID == "" {
		writeInvalidRequest(w, "orderFieldId が必要です")
		return
	}

	result, err := h.service.DeleteFromCart(r.Context(), orderFieldID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SearchAndAdd は商品名で検索し、最初に一致した商品をカートに追加する。
// 一致しない場合も200で success=false を返す。
// POST /api/cart/search-and-add
func (h *AccountHandler) SearchAndAdd(w http.ResponseWriter, r *http.Request) {
	var req searchAndAddRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		writeInvalidRequest(w, "product_name が必要です")
		return
	}

	result, err := h.service.SearchAndAdd(r.Context(), name, quantityOrDefault(req.Quantity), req.Favourite)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AddEntry は "2 rohlíky (5)" 形式の買い物エントリをカートに追加する。
// POST /api/cart/entries
func (h *AccountHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req shoppingEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.AddShoppingEntry(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// SearchProducts は商品を検索する。該当がない場合は空の一覧を返す。
// GET /api/products/search?q=&limit=&favourite=
func (h *AccountHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("q"))
	if name == "" {
		writeInvalidRequest(w, "q が必要です")
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeInvalidRequest(w, "limit は1以上の整数で指定してください")
			return
		}
		limit = n
	}

	favourite := false
	if s := q.Get("favourite"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeInvalidRequest(w, "favourite は true または false で指定してください")
			return
		}
		favourite = b
	}

	results, err := h.service.SearchProduct(r.Context(), name, limit, favourite)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if results == nil {
		results = &rohlik.SearchResults{Results: []rohlik.ProductReference{}}
	}
	writeJSON(w, http.StatusOK, results)
}

// ShoppingList は買い物リストを返す。
// GET /api/shopping-lists/{id}
func (h *AccountHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetShoppingList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
