package rohlik

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
)

const cartPath = "/services/frontend-service/v2/cart"

// cartSource はカート追加時にベンダーへ送る流入元。
const cartSource = "true:Shopping Lists"

// CartItemRequest はカートに追加する商品と数量。
type CartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddToCartResult はカート追加の結果。追加に成功した商品IDのみを含む。
type AddToCartResult struct {
	AddedProducts []int64 `json:"added_products"`
}

// CartLineItem は正規化したカートの商品行。
type CartLineItem struct {
	ID           string  `json:"id"`
	CartItemID   string  `json:"cart_item_id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	CategoryName string  `json:"category_name"`
	Brand        string  `json:"brand"`
}

// CartContent は正規化したカートの内容と合計。
type CartContent struct {
	TotalPrice   float64        `json:"total_price"`
	TotalItems   int            `json:"total_items"`
	CanMakeOrder bool           `json:"can_make_order"`
	Products     []CartLineItem `json:"products"`
}

// DeleteResult はカート削除の応答。
// ベンダーがJSONを返した場合はそのまま、それ以外は成功とステータスコードを表す。
type DeleteResult struct {
	Body       json.RawMessage
	StatusCode int
}

// MarshalJSON はベンダーの応答、または {"success":true,"status_code":N} を出力する。
func (r DeleteResult) MarshalJSON() ([]byte, error) {
	if r.Body != nil {
		return r.Body, nil
	}
	return json.Marshal(struct {
		Success    bool `json:"success"`
		StatusCode int  `json:"status_code"`
	}{true, r.StatusCode})
}

type addToCartPayload struct {
	ActionID  *int64 `json:"actionId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	RecipeID  *int64 `json:"recipeId"`
	Source    string `json:"source"`
}

// AddToCart は商品を1件ずつカートに追加する。
// 失敗した商品はログに記録して結果から除外し、残りの追加は継続する。
func (c *Client) AddToCart(ctx context.Context, items []CartItemRequest) (*AddToCartResult, error) {
	result := &AddToCartResult{AddedProducts: []int64{}}
	err := c.withSession(ctx, func(s *Session) error {
		for _, item := range items {
			resp, err := c.do(ctx, s, "cart_add", "POST", cartPath, nil, addToCartPayload{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Source:    cartSource,
			})
			if err == nil {
				err = resp.ok()
			}
			if err != nil {
				c.logger.Error("商品をカートに追加できませんでした",
					slog.Int64("product_id", item.ProductID),
					slog.String("error", err.Error()),
				)
				continue
			}
			result.AddedProducts = append(result.AddedProducts, item.ProductID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetCartContent はカートの内容を取得する。
func (c *Client) GetCartContent(ctx context.Context) (*CartContent, error) {
	var content *CartContent
	err := c.withSession(ctx, func(s *Session) error {
		var err error
		content, err = c.fetchCart(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// fetchCart はログイン済みのセッションでカートを取得して正規化する。
func (c *Client) fetchCart(ctx context.Context, s *Session) (*CartContent, error) {
	resp, err := c.do(ctx, s, KeyCart, "GET", cartPath, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.ok(); err != nil {
		return nil, err
	}
	var cart cartResponse
	if err := resp.decode(&cart); err != nil {
		return nil, err
	}
	return normalizeCart(&cart), nil
}

// normalizeCart はベンダーのカート応答を商品ID順の商品行に変換する。
func normalizeCart(cart *cartResponse) *CartContent {
	content := &CartContent{Products: []CartLineItem{}}
	if cart.Data == nil {
		return content
	}

	content.TotalPrice = cart.Data.TotalPrice
	content.TotalItems = len(cart.Data.Items)
	content.CanMakeOrder = cart.Data.SubmitConditionPassed

	for productID, item := range cart.Data.Items {
		content.Products = append(content.Products, CartLineItem{
			ID:           productID,
			CartItemID:   string(item.OrderFieldID),
			Name:         item.ProductName,
			Quantity:     item.Quantity,
			Price:        item.Price,
			CategoryName: item.PrimaryCategoryName,
			Brand:        item.Brand,
		})
	}
	sort.Slice(content.Products, func(i, j int) bool {
		return lessProductID(content.Products[i].ID, content.Products[j].ID)
	})
	return content
}

// lessProductID は数値として比較できるIDを数値順、それ以外を文字列順で並べる。
func lessProductID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// DeleteFromCart はorderFieldIdで指定した商品行をカートから削除する。
// 失敗は APIRequestFailedError として返す。
func (c *Client) DeleteFromCart(ctx context.Context, orderFieldID string) (*DeleteResult, error) {
	var result *DeleteResult
	err := c.withSession(ctx, func(s *Session) error {
		resp, err := c.do(ctx, s, "cart_delete", "DELETE", cartPath, url.Values{"orderFieldId": {orderFieldID}}, nil)
		if err == nil {
			if err = resp.ok(); err != nil {
				err = &APIRequestFailedError{Endpoint: "cart_delete", Err: err}
			}
		}
		if err != nil {
			c.logger.Error("カートから商品を削除できませんでした",
				slog.String("order_field_id", orderFieldID),
				slog.String("error", err.Error()),
			)
			return err
		}

		result = &DeleteResult{StatusCode: resp.statusCode}
		if len(resp.body) > 0 && json.Valid(resp.body) {
			result.Body = json.RawMessage(resp.body)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
