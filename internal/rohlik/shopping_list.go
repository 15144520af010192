package rohlik

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
)

const shoppingListPath = "/api/v1/shopping-lists/id/"

// ShoppingList は買い物リスト。商品はベンダーの形式のまま保持する。
type ShoppingList struct {
	Name           string            `json:"name"`
	ProductsInList []json.RawMessage `json:"products_in_list"`
}

// GetShoppingList はIDで指定した買い物リストを取得する。
// IDが空の場合は通信せずに ErrMissingShoppingListID を返す。
func (c *Client) GetShoppingList(ctx context.Context, id string) (*ShoppingList, error) {
	if id == "" {
		return nil, ErrMissingShoppingListID
	}

	var list *ShoppingList
	err := c.withSession(ctx, func(s *Session) error {
		resp, err := c.do(ctx, s, "shopping_list", "GET", shoppingListPath+url.PathEscape(id), nil, nil)
		if err != nil {
			return err
		}
		if err := resp.ok(); err != nil {
			return err
		}
		var sl shoppingListResponse
		if err := resp.decode(&sl); err != nil {
			return err
		}
		list = &ShoppingList{Name: sl.Name, ProductsInList: sl.Products}
		if list.ProductsInList == nil {
			list.ProductsInList = []json.RawMessage{}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("買い物リストの取得に失敗しました",
			slog.String("shopping_list_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return list, nil
}
