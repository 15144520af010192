package rohlik

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

const (
	searchPath = "/services/frontend-service/search-metadata"

	// DefaultSearchLimit は検索件数の既定値。
	DefaultSearchLimit = 10
	// searchOverfetch はプロモーション商品の除外分として多めに取得する件数。
	searchOverfetch = 5
	promotedBadge   = "promoted"
)

// ProductReference は検索結果の商品。Priceは "<価格> <通貨>" 形式。
type ProductReference struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Brand  string `json:"brand"`
	Amount string `json:"amount"`
}

// SearchResults は商品検索の結果。
type SearchResults struct {
	Results []ProductReference `json:"search_results"`
}

// SearchProduct は商品名で検索する。
//
// プロモーション商品は除外し、favourite指定時はお気に入りのみを残して limit 件に切り詰める。
// 該当がない場合は (nil, nil) を返す。limitが0以下の場合は DefaultSearchLimit を使う。
func (c *Client) SearchProduct(ctx context.Context, name string, limit int, favourite bool) (*SearchResults, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var found []searchProduct
	err := c.withSession(ctx, func(s *Session) error {
		query := url.Values{
			"search":     {name},
			"offset":     {"0"},
			"limit":      {strconv.Itoa(limit + searchOverfetch)},
			"companyId":  {"1"},
			"filterData": {`{"filters":[]}`},
			"canCorrect": {"true"},
		}
		resp, err := c.do(ctx, s, "search", "GET", searchPath, query, nil)
		if err != nil {
			return err
		}
		if err := resp.ok(); err != nil {
			return err
		}
		var sr searchResponse
		if err := resp.decode(&sr); err != nil {
			return err
		}
		if sr.Data != nil {
			found = sr.Data.ProductList
		}
		return nil
	})
	if err != nil {
		c.logger.Error("商品検索に失敗しました",
			slog.String("query", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	results := filterProducts(found, limit, favourite)
	if len(results) == 0 {
		return nil, nil
	}
	return &SearchResults{Results: results}, nil
}

// filterProducts はプロモーション商品と（指定時は）お気に入り以外を除外し、limit件に切り詰める。
func filterProducts(products []searchProduct, limit int, favourite bool) []ProductReference {
	var out []ProductReference
	for _, p := range products {
		if len(out) >= limit {
			break
		}
		if p.promoted() || (favourite && !p.Favourite) {
			continue
		}
		out = append(out, p.reference())
	}
	return out
}

func (p searchProduct) promoted() bool {
	for _, b := range p.Badge {
		if b.Slug == promotedBadge {
			return true
		}
	}
	return false
}

func (p searchProduct) reference() ProductReference {
	ref := ProductReference{
		ID:     p.ProductID,
		Name:   p.ProductName,
		Brand:  p.Brand,
		Amount: p.TextualAmount,
	}
	if p.Price != nil {
		ref.Price = fmt.Sprintf("%s %s", strconv.FormatFloat(p.Price.Full, 'f', -1, 64), p.Price.Currency)
	}
	return ref
}
