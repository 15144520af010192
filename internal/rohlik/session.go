package rohlik

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/rohlikhub/internal/logger"
)

const loginPath = "/services/frontend-service/login"

// Session はCookieを保持する認証済みHTTPコンテキスト。
// 作成した操作が専有し、操作の終了時に Close する。
type Session struct {
	httpClient *http.Client

	// UserID はログインで取得したユーザーID。
	UserID int64
	// AddressID は配達先住所ID。住所未設定のアカウントではnil。
	AddressID *int64
}

// NewSession は空のCookie Jarを持つ新しいセッションを作成する。
func (c *Client) NewSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("Cookie Jarの作成に失敗しました: %w", err)
	}
	hc := c.newHTTPClient(c.timeout)
	hc.Jar = jar
	return &Session{httpClient: hc}, nil
}

// Close はセッションのCookieとアイドル接続を破棄する。
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
	s.httpClient.Jar = nil
}

// RequireAddress は配達先住所が設定されていない場合に ErrAddressNotSet を返す。
func (s *Session) RequireAddress() error {
	if s.AddressID == nil {
		return ErrAddressNotSet
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Login はセッション上でログインし、ユーザーIDと住所IDをセッションに設定する。
//
// 判定はHTTPステータスではなくJSONボディ内のベンダーステータスで行う。
// 200は成功、401は InvalidCredentialsError、それ以外は UnknownAuthError を返す。
// 通信レベルの失敗は APIRequestFailedError を返す。
// 住所IDがない場合はログに記録するだけでエラーにはしない。
func (c *Client) Login(ctx context.Context, s *Session) (*LoginResponse, error) {
	resp, err := c.do(ctx, s, "login", "POST", loginPath, nil, loginRequest{
		Email:    c.email,
		Password: c.password,
	})
	if err != nil {
		c.metrics.RecordLoginFailure("connection")
		return nil, err
	}

	if !gjson.ValidBytes(resp.body) {
		c.metrics.RecordLoginFailure("connection")
		return nil, &APIRequestFailedError{
			Endpoint: "login",
			Err:      fmt.Errorf("ログイン応答がJSONではありません (http_status=%d)", resp.statusCode),
		}
	}

	status := resp.statusCode
	if v := gjson.GetBytes(resp.body, "status"); v.Exists() {
		status = int(v.Int())
	}
	message := gjson.GetBytes(resp.body, "messages.0.content").String()

	switch {
	case status == 401:
		c.metrics.RecordLoginFailure("invalid_credentials")
		c.logger.Warn("ログイン情報が拒否されました",
			slog.Int("vendor_status", status),
		)
		return nil, &InvalidCredentialsError{Message: message}
	case status != 200:
		c.metrics.RecordLoginFailure("unknown")
		c.logger.Error("ログイン中に不明なエラーが発生しました",
			slog.Int("vendor_status", status),
			slog.String("message", message),
		)
		return nil, &UnknownAuthError{Status: status, Message: message}
	}

	var login LoginResponse
	if err := resp.decode(&login); err != nil {
		c.metrics.RecordLoginFailure("connection")
		return nil, err
	}
	login.Raw = resp.body

	if login.Data != nil && login.Data.User != nil {
		s.UserID = login.Data.User.ID
	}
	if login.Data != nil && login.Data.Address != nil && login.Data.Address.ID != nil {
		id := *login.Data.Address.ID
		s.AddressID = &id
	} else {
		c.logger.Warn("ログイン応答から住所を取得できません。配達枠の取得はスキップされます",
			slog.String("login_response", logger.RedactJSON(resp.body)),
		)
	}

	return &login, nil
}
