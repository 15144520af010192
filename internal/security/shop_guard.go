// Package security はショップへの接続先を検証する機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はショップURLに許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は安全なネットワークモードで拒否するネットワーク範囲。
// safeurlはDNS解決後のIPアドレスもDialerで検証するため、ここでは静的な事前検証に使う。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIPを含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// ShopGuard はショップURLの検証とセッション用HTTPクライアントの生成を行う。
// safeNetworkが有効な場合、プライベートネットワークへの接続を拒否する。
type ShopGuard struct {
	safeNetwork bool
}

// NewShopGuard はShopGuardの新しいインスタンスを生成する。
func NewShopGuard(safeNetwork bool) *ShopGuard {
	return &ShopGuard{safeNetwork: safeNetwork}
}

// SafeNetwork は安全なネットワークモードが有効かを返す。
func (g *ShopGuard) SafeNetwork() bool {
	return g.safeNetwork
}

// NewHTTPClient はセッション用のHTTPクライアントを生成する。
// 呼び出しごとに新しいクライアントを返すため、Cookie Jarを個別に設定できる。
//
// 安全なネットワークモードではsafeurlのクライアントを使い、以下をブロックする:
//   - プライベートIPアドレス
//   - ループバックアドレス
//   - リンクローカルアドレス（メタデータIPを含む）
func (g *ShopGuard) NewHTTPClient(timeout time.Duration) *http.Client {
	if !g.safeNetwork {
		return &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   timeout,
		}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateShopURL はショップのベースURLを静的に検証する。
// 安全なネットワークモードではhttpsのみを許可し、ローカルネットワークのホストを拒否する。
func (g *ShopGuard) ValidateShopURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if !g.safeNetwork {
		return nil
	}

	if scheme != "https" {
		return fmt.Errorf("https is required in safe network mode: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
