package account

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingQuantity  = regexp.MustCompile(`^(\d+)\s+(.+)$`)
	trailingQuantity = regexp.MustCompile(`\((\d+)\)$`)
)

// ProductNotFoundError は検索語に一致する商品がなかったことを表す。
// errors.Is(err, ErrProductNotFound) が true になる。
type ProductNotFoundError struct {
	Query string
}

// Error はerrorインターフェースを実装する。
func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProductNotFound.Error(), e.Query)
}

// Is はErrProductNotFoundとの比較を可能にする。
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// ParseShoppingEntry は "2 rohlíky" や "mléko (3)" 形式の買い物エントリを商品名と数量に分解する。
// 末尾の括弧内の数量が先頭の数量より優先される。数量の指定がない場合は1。
func ParseShoppingEntry(text string) (name string, quantity int) {
	name = strings.TrimSpace(text)
	quantity = 1

	if m := leadingQuantity.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			quantity = n
			name = m[2]
		}
	}

	if m := trailingQuantity.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			quantity = n
			name = strings.TrimSpace(strings.SplitN(name, "(", 2)[0])
		}
	}

	return name, quantity
}

// AddShoppingEntry は自由入力の買い物エントリを解析し、一致した商品をカートに追加する。
// 一致する商品がない場合は ErrProductNotFound を返す。
func (a *Account) AddShoppingEntry(ctx context.Context, text string) (*SearchAndAddResult, error) {
	name, quantity := ParseShoppingEntry(text)
	if name == "" {
		return nil, ErrEmptyEntry
	}

	result, matched, err := a.searchAndAdd(ctx, name, quantity, false)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, &ProductNotFoundError{Query: name}
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrNotAddedToCart, name)
	}
	return result, nil
}
