package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// redactedValue はマスク後の値。
const redactedValue = `"XXXXXXX"`

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, level)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel はLOG_LEVELの文字列をslog.Levelに変換する。
// 不明な値はInfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactJSON はJSONのnull以外のスカラー値をすべてマスクした文字列を返す。
// キーと構造は保持する。JSONでない入力は内容を出力せずに固定文字列を返す。
func RedactJSON(b []byte) string {
	if !gjson.ValidBytes(b) {
		return "<invalid json>"
	}
	var buf bytes.Buffer
	redact(&buf, gjson.ParseBytes(b))
	return buf.String()
}

func redact(buf *bytes.Buffer, v gjson.Result) {
	switch {
	case v.IsObject():
		buf.WriteByte('{')
		first := true
		v.ForEach(func(key, value gjson.Result) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.WriteString(key.Raw)
			buf.WriteByte(':')
			redact(buf, value)
			return true
		})
		buf.WriteByte('}')
	case v.IsArray():
		buf.WriteByte('[')
		for i, item := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			redact(buf, item)
		}
		buf.WriteByte(']')
	case v.Type == gjson.Null:
		buf.WriteString("null")
	default:
		buf.WriteString(redactedValue)
	}
}
