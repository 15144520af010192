// Package rohlik はRohlík.cz（およびKnuspr.de）の非公式Web APIクライアントを提供する。
//
// 操作ごとに新しいセッション（Cookie付きHTTPクライアント）を作成してログインし、
// 操作の終了時に破棄する。アカウント情報の集約（GetData）だけは1つのセッションで
// 複数エンドポイントを取得する。
package rohlik

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL はショップの既定URL。
	DefaultBaseURL = "https://www.rohlik.cz"
	// AlternateBaseURL はドイツ向けショップ（Knuspr.de）のURL。
	AlternateBaseURL = "https://www.knuspr.de"

	// alternateShopHost はドイツ向けショップの判定に使うホスト名。
	alternateShopHost = "knuspr.de"
	// defaultTimeout は1リクエストあたりのタイムアウト。
	defaultTimeout = 10 * time.Second
	// maxBodySize はレスポンスボディの最大読み取りサイズ。
	maxBodySize = 5 << 20
	userAgent   = "rohlikhub/1.0"
)

// HTTPClientFactory はセッションごとのHTTPクライアントを生成する。
// 生成されたクライアントのJarはセッション側で設定するため、共有インスタンスを返してはならない。
type HTTPClientFactory func(timeout time.Duration) *http.Client

// Recorder はベンダー呼び出しのメトリクス記録先。
type Recorder interface {
	RecordRequest(endpoint string, statusCode int, duration time.Duration, err error)
	RecordLoginFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, int, time.Duration, error) {}
func (nopRecorder) RecordLoginFailure(string)                       {}

// Options はClientの生成パラメータ。
type Options struct {
	Email    string
	Password string
	// BaseURL が空の場合は DefaultBaseURL を使用する。
	BaseURL string
	// Timeout が0以下の場合は10秒。
	Timeout time.Duration
	// Limiter はベンダーへのリクエスト間隔を制御する。nilの場合は制限しない。
	Limiter *rate.Limiter
	// NewHTTPClient がnilの場合は DefaultHTTPClientFactory を使用する。
	NewHTTPClient HTTPClientFactory
	Logger        *slog.Logger
	Metrics       Recorder
}

// Client はRohlík APIのクライアント。
// 認証情報は生成時に固定され、以降変更されない。
type Client struct {
	email         string
	password      string
	baseURL       string
	timeout       time.Duration
	limiter       *rate.Limiter
	newHTTPClient HTTPClientFactory
	logger        *slog.Logger
	metrics       Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(opts Options) (*Client, error) {
	if opts.Email == "" || opts.Password == "" {
		return nil, fmt.Errorf("メールアドレスとパスワードは必須です")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}

	c := &Client{
		email:         opts.Email,
		password:      opts.Password,
		baseURL:       baseURL,
		timeout:       opts.Timeout,
		limiter:       opts.Limiter,
		newHTTPClient: opts.NewHTTPClient,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.newHTTPClient == nil {
		c.newHTTPClient = DefaultHTTPClientFactory
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	return c, nil
}

// DefaultHTTPClientFactory はセッション専用のトランスポートを持つHTTPクライアントを生成する。
func DefaultHTTPClientFactory(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		Timeout:   timeout,
	}
}

// BaseURL はショップのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAlternateShop はドイツ向けショップ（Knuspr.de）かどうかを返す。
func (c *Client) IsAlternateShop() bool {
	return IsAlternateShopURL(c.baseURL)
}

// IsAlternateShopURL はURLがドイツ向けショップのものかを判定する。
func IsAlternateShopURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), alternateShopHost)
}

// response はベンダー応答の読み取り結果。
type response struct {
	endpoint   string
	statusCode int
	body       []byte
}

// ok はHTTPステータスが成功であることを確認する。
func (r *response) ok() error {
	if r.statusCode < 200 || r.statusCode >= 300 {
		return &RequestError{Endpoint: r.endpoint, StatusCode: r.statusCode}
	}
	return nil
}

// decode はJSONボディをvにデコードする。デコード失敗は通信失敗として扱う。
func (r *response) decode(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return &APIRequestFailedError{
			Endpoint: r.endpoint,
			Err:      fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err),
		}
	}
	return nil
}

// do はセッション上でリクエストを1回実行する。リトライは行わない。
// 通信レベルの失敗のみエラーとして返し、HTTPステータスの判定は呼び出し元で行う。
func (c *Client) do(ctx context.Context, s *Session, endpoint, method, path string, query url.Values, payload any) (*response, error) {
	start := time.Now()
	resp, err := c.roundTrip(ctx, s, endpoint, method, path, query, payload)
	status := 0
	if resp != nil {
		status = resp.statusCode
	}
	c.metrics.RecordRequest(endpoint, status, time.Since(start), err)
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, s *Session, endpoint, method, path string, query url.Values, payload any) (*response, error) {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("リクエストURLの構築に失敗しました: %w", err)
	}
	if len(query) > 0 {
		q := reqURL.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		reqURL.RawQuery = q.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIRequestFailedError{Endpoint: endpoint, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Rohlík APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, &APIRequestFailedError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &APIRequestFailedError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err),
		}
	}

	return &response{endpoint: endpoint, statusCode: resp.StatusCode, body: b}, nil
}

// withSession はセッションを作成してログインし、fnの終了後に必ずセッションを閉じる。
func (c *Client) withSession(ctx context.Context, fn func(s *Session) error) error {
	s, err := c.NewSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := c.Login(ctx, s); err != nil {
		return err
	}
	return fn(s)
}
