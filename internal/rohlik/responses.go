package rohlik

import (
	"encoding/json"
	"strings"
	"time"
)

// ID はベンダーが数値と文字列のどちらでも返すID。
type ID string

// UnmarshalJSON は数値・文字列・nullのいずれも受け付ける。
func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = ID(n.String())
		return nil
	}
}

// --- login ---

// LoginResponse はログインエンドポイントの応答。
type LoginResponse struct {
	Status   int             `json:"status"`
	Messages []VendorMessage `json:"messages"`
	Data     *LoginData      `json:"data"`

	// Raw はデコード前の応答。スナップショットの login キーにそのまま格納する。
	Raw json.RawMessage `json:"-"`
}

// VendorMessage はベンダー応答に含まれるメッセージ。
type VendorMessage struct {
	Content string `json:"content"`
}

// LoginData はログイン応答のdata部。
type LoginData struct {
	User    *User    `json:"user"`
	Address *Address `json:"address"`
}

// User はログインユーザーの情報。
type User struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Credits           *float64 `json:"credits"`
	ReusablePackaging bool     `json:"reusablePackaging"`
	ParentsClub       bool     `json:"parentsClub"`
	Premium           *Premium `json:"premium"`
}

// Address は配達先住所。IDがない場合は住所未設定として扱う。
type Address struct {
	ID *int64 `json:"id"`
}

// Premium はプレミアム会員情報。
type Premium struct {
	Active                bool           `json:"active"`
	PremiumMembershipType string         `json:"premiumMembershipType"`
	PremiumType           string         `json:"premiumType"`
	RecurrentPaymentDate  string         `json:"recurrentPaymentDate"`
	StartDate             string         `json:"startDate"`
	EndDate               string         `json:"endDate"`
	RemainingDays         *int           `json:"remainingDays"`
	PremiumLimits         *PremiumLimits `json:"premiumLimits"`
}

// PremiumLimits はプレミアム特典の残り回数。
type PremiumLimits struct {
	OrdersWithoutPriceLimit *Remaining `json:"ordersWithoutPriceLimit"`
	FreeExpressLimit        *Remaining `json:"freeExpressLimit"`
}

// Remaining は残り回数。
type Remaining struct {
	Remaining int `json:"remaining"`
}

// --- read endpoints ---

// FirstDelivery は最短配達案内（first-delivery）の応答。
type FirstDelivery struct {
	Data *struct {
		FirstDeliveryText    LocalizedText `json:"firstDeliveryText"`
		DeliveryLocationText string        `json:"deliveryLocationText"`
		DeliveryType         string        `json:"deliveryType"`
	} `json:"data"`
}

// LocalizedText はベンダーの多言語テキスト。
type LocalizedText struct {
	Default string `json:"default"`
}

// Order は注文（次回注文・前回注文の両方で共通）。
type Order struct {
	ID               ID                `json:"id"`
	OrderTime        string            `json:"orderTime"`
	ItemsCount       *int              `json:"itemsCount"`
	DeliverySlot     *Interval         `json:"deliverySlot"`
	PriceComposition *PriceComposition `json:"priceComposition"`
}

// PriceComposition は注文金額の内訳。
type PriceComposition struct {
	Total *Money `json:"total"`
}

// Money は金額と通貨。
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Interval は時間帯。ベンダーはRFC 3339形式の文字列で返す。
type Interval struct {
	Since string `json:"since"`
	Till  string `json:"till"`
}

// Start は開始時刻を返す。解析できない場合は false を返す。
func (i Interval) Start() (time.Time, bool) {
	return parseVendorTime(i.Since)
}

// End は終了時刻を返す。
func (i Interval) End() (time.Time, bool) {
	return parseVendorTime(i.Till)
}

func parseVendorTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ReusableBags はリユースバッグの情報。
type ReusableBags struct {
	Current *int   `json:"current"`
	Max     *int   `json:"max"`
	Deposit *Money `json:"deposit"`
}

// TimeslotReservation は配達枠の予約状況。
type TimeslotReservation struct {
	Data *struct {
		Active            bool            `json:"active"`
		ReservationDetail json.RawMessage `json:"reservationDetail"`
	} `json:"data"`
}

// DeliverySlots は次回配達枠（timeslots-api）の応答。
type DeliverySlots struct {
	Data *struct {
		PreselectedSlots []PreselectedSlot `json:"preselectedSlots"`
		ExpressSlot      *Slot             `json:"expressSlot"`
	} `json:"data"`
}

// PreselectedSlot はベンダーが提案する配達枠。
// TypeはEXPRESS、ECO、FIRST、FIRST_CHEAPEST、RECOMMENDEDなど。
type PreselectedSlot struct {
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Slot     Slot    `json:"slot"`
}

// Slot は配達枠の時間帯と空き状況。
type Slot struct {
	Interval Interval  `json:"interval"`
	Capacity *Capacity `json:"timeSlotCapacityDTO"`
}

// Capacity は配達枠の空き状況。
type Capacity struct {
	TotalFreeCapacityPercent float64 `json:"totalFreeCapacityPercent"`
	CapacityMessage          string  `json:"capacityMessage"`
}

// deliveryAnnouncements は配達案内（announcements/delivery）の応答。
type deliveryAnnouncements struct {
	Data *struct {
		Announcements []Announcement `json:"announcements"`
	} `json:"data"`
}

// Announcement は配達案内。ContentはHTML文字列。
type Announcement struct {
	ID                ID     `json:"id"`
	Title             string `json:"title"`
	Content           string `json:"content"`
	AdditionalContent string `json:"additionalContent"`
	UpdatedAt         string `json:"updatedAt"`
}

// --- cart / search / shopping list ---

// cartResponse はカート（v2/cart）の応答。itemsは商品IDをキーとするマップ。
type cartResponse struct {
	Data *struct {
		TotalPrice            float64             `json:"totalPrice"`
		Items                 map[string]cartItem `json:"items"`
		SubmitConditionPassed bool                `json:"submitConditionPassed"`
	} `json:"data"`
}

type cartItem struct {
	OrderFieldID        ID      `json:"orderFieldId"`
	ProductName         string  `json:"productName"`
	Quantity            int     `json:"quantity"`
	Price               float64 `json:"price"`
	PrimaryCategoryName string  `json:"primaryCategoryName"`
	Brand               string  `json:"brand"`
}

// searchResponse は商品検索（search-metadata）の応答。
type searchResponse struct {
	Data *struct {
		ProductList []searchProduct `json:"productList"`
	} `json:"data"`
}

type searchProduct struct {
	ProductID     int64  `json:"productId"`
	ProductName   string `json:"productName"`
	Brand         string `json:"brand"`
	TextualAmount string `json:"textualAmount"`
	Favourite     bool   `json:"favourite"`
	Price         *struct {
		Full     float64 `json:"full"`
		Currency string  `json:"currency"`
	} `json:"price"`
	Badge []struct {
		Slug string `json:"slug"`
	} `json:"badge"`
}

// shoppingListResponse は買い物リストの応答。
type shoppingListResponse struct {
	Name     string            `json:"name"`
	Products []json.RawMessage `json:"products"`
}
