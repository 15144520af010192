package rohlik

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

const testSearchBody = `{"data":{"productList":[
	{"productId":1,"productName":"Sponzorované mléko","brand":"Ad","textualAmount":"1 l","favourite":true,"price":{"full":19.9,"currency":"CZK"},"badge":[{"slug":"promoted"}]},
	{"productId":2,"productName":"Mléko polotučné","brand":"Madeta","textualAmount":"1 l","favourite":false,"price":{"full":24.9,"currency":"CZK"},"badge":[]},
	{"productId":3,"productName":"Mléko plnotučné","brand":"Olma","textualAmount":"1 l","favourite":true,"price":{"full":27.5,"currency":"CZK"},"badge":[{"slug":"sale"}]},
	{"productId":4,"productName":"Mléko bez laktózy","brand":"Kunín","textualAmount":"1 l","favourite":false,"price":{"full":32,"currency":"CZK"}},
	{"productId":5,"productName":"Mléko kozí","brand":"Farma","textualAmount":"0.5 l","favourite":true,"price":{"full":45.9,"currency":"CZK"},"badge":[{"slug":"promoted"},{"slug":"new"}]},
	{"productId":6,"productName":"Mléko trvanlivé","brand":"Tatra","textualAmount":"1 l","favourite":true,"price":{"full":21.9,"currency":"CZK"}}
]}}`

func TestClient_SearchProduct_QueryParameters(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(200, testSearchBody))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	if _, err := c.SearchProduct(context.Background(), "mléko", 3, false); err != nil {
		t.Fatalf("SearchProduct がエラーを返した: %v", err)
	}

	r := f.last("GET", searchPath)
	if r == nil {
		t.Fatal("検索がリクエストされていない")
	}
	q := r.URL.Query()
	want := map[string]string{
		"search":     "mléko",
		"offset":     "0",
		"limit":      "8",
		"companyId":  "1",
		"filterData": `{"filters":[]}`,
		"canCorrect": "true",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestClient_SearchProduct_FiltersPromoted(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(200, testSearchBody))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	got, err := c.SearchProduct(context.Background(), "mléko", 10, false)
	if err != nil {
		t.Fatalf("SearchProduct がエラーを返した: %v", err)
	}

	wantIDs := []int64{2, 3, 4, 6}
	if len(got.Results) != len(wantIDs) {
		t.Fatalf("結果数 = %d, want %d", len(got.Results), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got.Results[i].ID != id {
			t.Errorf("Results[%d].ID = %d, want %d", i, got.Results[i].ID, id)
		}
	}

	first := got.Results[0]
	if first.Name != "Mléko polotučné" || first.Brand != "Madeta" || first.Amount != "1 l" {
		t.Errorf("Results[0] = %+v", first)
	}
	if first.Price != "24.9 CZK" {
		t.Errorf("Price = %q, want %q", first.Price, "24.9 CZK")
	}
}

func TestClient_SearchProduct_FavouriteOnly(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(200, testSearchBody))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	got, err := c.SearchProduct(context.Background(), "mléko", 10, true)
	if err != nil {
		t.Fatalf("SearchProduct がエラーを返した: %v", err)
	}

	// お気に入りでもプロモーション商品（1, 5）は除外される
	if len(got.Results) != 2 || got.Results[0].ID != 3 || got.Results[1].ID != 6 {
		t.Errorf("Results = %+v, want ID 3, 6", got.Results)
	}
}

func TestClient_SearchProduct_Limit(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(200, testSearchBody))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	for _, limit := range []int{1, 2, 3} {
		got, err := c.SearchProduct(context.Background(), "mléko", limit, false)
		if err != nil {
			t.Fatalf("SearchProduct がエラーを返した: %v", err)
		}
		if len(got.Results) != limit {
			t.Errorf("limit=%d: 結果数 = %d", limit, len(got.Results))
		}
		for _, p := range got.Results {
			if p.ID == 1 || p.ID == 5 {
				t.Errorf("limit=%d: プロモーション商品 %d が含まれている", limit, p.ID)
			}
		}
	}
}

func TestClient_SearchProduct_DefaultLimit(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(200, testSearchBody))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	if _, err := c.SearchProduct(context.Background(), "mléko", 0, false); err != nil {
		t.Fatalf("SearchProduct がエラーを返した: %v", err)
	}
	if got := f.last("GET", searchPath).URL.Query().Get("limit"); got != "15" {
		t.Errorf("limit = %s, want 15", got)
	}
}

func TestClient_SearchProduct_NoResults(t *testing.T) {
	tests := map[string]string{
		"空のリスト":     `{"data":{"productList":[]}}`,
		"プロモーションのみ": `{"data":{"productList":[{"productId":1,"badge":[{"slug":"promoted"}]}]}}`,
		"dataなし":    `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakeVendor(t)
			f.handle("GET", searchPath, jsonHandler(200, body))

			var buf bytes.Buffer
			c := newTestClient(t, f, &buf)

			got, err := c.SearchProduct(context.Background(), "nic", 10, false)
			if err != nil {
				t.Fatalf("SearchProduct がエラーを返した: %v", err)
			}
			if got != nil {
				t.Errorf("結果 = %+v, want nil", got)
			}
		})
	}
}

func TestClient_SearchProduct_HTTPError(t *testing.T) {
	f := newFakeVendor(t)
	f.handle("GET", searchPath, jsonHandler(500, ``))

	var buf bytes.Buffer
	c := newTestClient(t, f, &buf)

	got, err := c.SearchProduct(context.Background(), "mléko", 10, false)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
	if got != nil {
		t.Errorf("結果 = %+v, want nil", got)
	}
}
