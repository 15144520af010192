// Package delivery はベンダーの配達案内（HTML文字列）から配達予定時刻を抽出する。
//
// 案内文はロケールごとに表記が異なるため、キーワードは Locale としてデータで保持する。
// 抽出は I/O を伴わない純粋な処理で、基準時刻 Now を差し替えることでテスト可能にしている。
package delivery

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// highlightOpen はベンダーが強調表示に使うインラインスタイル付きspanの開始タグ。
	highlightOpen = `<span[^>]*color:[^>]*>\s*`
	// highlightClose はspanの終了タグ。
	highlightClose = `\s*</span>`
)

var (
	dateSpanPattern  = regexp.MustCompile(highlightOpen + `([0-9]{1,2})\.\s*([0-9]{1,2})\.` + highlightClose)
	timeSpanPattern  = regexp.MustCompile(highlightOpen + `([0-9]{1,2}):([0-9]{2})` + highlightClose)
	plainTimePattern = regexp.MustCompile(`\b([0-9]{1,2}):([0-9]{2})\b`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
)

// maxRelativeMinutes は「N分後」として受け付ける上限（7日）。これを超える値は一致しない扱い。
const maxRelativeMinutes = 7 * 24 * 60

// Parser は配達案内から配達予定時刻を抽出する。
// 生成後は読み取り専用のため、複数goroutineから同時に使用できる。
type Parser struct {
	// Now は基準時刻を返す関数。nilの場合は time.Now を使用する。
	Now func() time.Time

	locale   Locale
	location *time.Location
	policy   *bluemonday.Policy

	strictMinutes *regexp.Regexp
	looseMinutes  *regexp.Regexp
	// phraseDateTime と phraseTime は前置詞が定義されたロケールでのみ設定される。
	phraseDateTime *regexp.Regexp
	phraseTime     *regexp.Regexp
}

// NewParser は指定ロケールのParserを生成する。
// タイムゾーンが読み込めない場合はエラーを返す。
func NewParser(locale Locale) (*Parser, error) {
	loc, err := time.LoadLocation(locale.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %s: %w", locale.TimeZone, err)
	}
	if len(locale.MinuteKeywords) == 0 {
		return nil, fmt.Errorf("ロケール %s に分のキーワードがありません", locale.Name)
	}

	minutes := alternation(locale.MinuteKeywords)
	p := &Parser{
		locale:        locale,
		location:      loc,
		policy:        bluemonday.StrictPolicy(),
		strictMinutes: regexp.MustCompile(`(?i)` + highlightOpen + `([0-9]+)\s*(?:</span>\s*(?:<[^>]+>\s*)*)?(?:` + minutes + `)`),
		looseMinutes:  regexp.MustCompile(`(?i)\b([0-9]+)\s*(?:` + minutes + `)`),
	}

	if len(locale.TimePrepositions) > 0 {
		qualifier := ""
		if len(locale.Qualifiers) > 0 {
			qualifier = `(?:(?:` + alternation(locale.Qualifiers) + `)\s*)?`
		}
		timePart := `(?:` + alternation(locale.TimePrepositions) + `)\s+` + qualifier + `([0-9]{1,2}):([0-9]{2})`
		p.phraseTime = regexp.MustCompile(`(?i)\b` + timePart)
		if len(locale.DatePrepositions) > 0 {
			p.phraseDateTime = regexp.MustCompile(`(?i)\b(?:` + alternation(locale.DatePrepositions) +
				`)\s+([0-9]{1,2})\.\s*([0-9]{1,2})\.?\s*,?\s*` + timePart)
		}
	}

	return p, nil
}

// MustNewParser はNewParserのパニック版。組み込みロケール用。
func MustNewParser(locale Locale) *Parser {
	p, err := NewParser(locale)
	if err != nil {
		panic(err)
	}
	return p
}

// Location はParserが使用するタイムゾーンを返す。
func (p *Parser) Location() *time.Location {
	return p.location
}

// Extract は案内文から配達予定時刻を抽出する。
// 認識できるパターンがない場合は false を返す。
func (p *Parser) Extract(htmlText string) (time.Time, bool) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return p.ExtractAt(htmlText, now())
}

// ExtractAt は基準時刻 now を明示して配達予定時刻を抽出する。
//
// 判定順（先に一致したものを採用）:
//  1. 強調表示された数値 + 分のキーワード（見つからなければプレーンテキストで再試行）
//  2. 文章形式の日付+時刻（前置詞が定義されたロケールのみ）
//  3. 文章形式の時刻のみ（同上）
//  4. 強調表示された日付と時刻
//  5. 強調表示された時刻のみ
//  6. プレーンテキスト中の任意の HH:MM
//
// 数値が不正なパターンは不一致として次の判定に進む。
func (p *Parser) ExtractAt(htmlText string, now time.Time) (time.Time, bool) {
	if strings.TrimSpace(htmlText) == "" {
		return time.Time{}, false
	}
	now = now.In(p.location)
	markup := normalizeSpaces(htmlText)
	plain := p.PlainText(htmlText)

	if t, ok := p.relativeMinutes(markup, plain, now); ok {
		return t, true
	}

	if p.phraseDateTime != nil {
		if m := p.phraseDateTime.FindStringSubmatch(plain); m != nil {
			if t, ok := p.absolute(now.Year(), m[2], m[1], m[3], m[4]); ok {
				return t, true
			}
		}
	}
	if p.phraseTime != nil {
		if m := p.phraseTime.FindStringSubmatch(plain); m != nil {
			if t, ok := p.nextOccurrence(now, m[1], m[2]); ok {
				return t, true
			}
		}
	}

	timeMatch := timeSpanPattern.FindStringSubmatch(markup)
	if dateMatch := dateSpanPattern.FindStringSubmatch(markup); dateMatch != nil && timeMatch != nil {
		if t, ok := p.absolute(now.Year(), dateMatch[2], dateMatch[1], timeMatch[1], timeMatch[2]); ok {
			return t, true
		}
	}
	if timeMatch != nil {
		if t, ok := p.nextOccurrence(now, timeMatch[1], timeMatch[2]); ok {
			return t, true
		}
	}

	if m := plainTimePattern.FindStringSubmatch(plain); m != nil {
		if t, ok := p.nextOccurrence(now, m[1], m[2]); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// PlainText は案内文からタグを除去し、HTMLエンティティを復元したテキストを返す。
func (p *Parser) PlainText(htmlText string) string {
	stripped := p.policy.Sanitize(normalizeSpaces(htmlText))
	// 壊れたタグなどbluemondayが残した断片を除去する
	stripped = tagPattern.ReplaceAllString(stripped, "")
	return strings.TrimSpace(normalizeSpaces(html.UnescapeString(stripped)))
}

// relativeMinutes は「N分後」形式を判定する。
func (p *Parser) relativeMinutes(markup, plain string, now time.Time) (time.Time, bool) {
	m := p.strictMinutes.FindStringSubmatch(markup)
	if m == nil {
		m = p.looseMinutes.FindStringSubmatch(plain)
	}
	if m == nil {
		return time.Time{}, false
	}
	minutes, err := strconv.Atoi(m[1])
	if err != nil || minutes > maxRelativeMinutes {
		return time.Time{}, false
	}
	return now.Add(time.Duration(minutes) * time.Minute), true
}

// absolute は年・月・日・時・分の文字列から絶対時刻を組み立てる。
// 存在しない日付（31.2.など）や範囲外の時刻は false を返す。
func (p *Parser) absolute(year int, month, day, hour, minute string) (time.Time, bool) {
	mo, err1 := strconv.Atoi(month)
	d, err2 := strconv.Atoi(day)
	h, m, ok := parseClock(hour, minute)
	if err1 != nil || err2 != nil || !ok {
		return time.Time{}, false
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(mo), d, h, m, 0, 0, p.location)
	// time.Dateは範囲外の日付を正規化するため、繰り上がっていないことを確認する
	if t.Month() != time.Month(mo) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// nextOccurrence は今日の指定時刻を返す。既に過ぎている場合は翌日の同時刻を返す。
func (p *Parser) nextOccurrence(now time.Time, hour, minute string) (time.Time, bool) {
	h, m, ok := parseClock(hour, minute)
	if !ok {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, p.location)
	if t.Before(now) {
		t = time.Date(now.Year(), now.Month(), now.Day()+1, h, m, 0, 0, p.location)
	}
	return t, true
}

func parseClock(hour, minute string) (int, int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// alternation はキーワードを正規表現の選択肢に変換する。
// 短い語が長い語の接頭辞に先に一致しないよう、長い順に並べる。
func alternation(words []string) string {
	sorted := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			sorted = append(sorted, regexp.QuoteMeta(w))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return strings.Join(sorted, "|")
}

// normalizeSpaces はノーブレークスペースを通常の空白に置き換える。
// RE2の \s はU+00A0に一致しないため。
func normalizeSpaces(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.ReplaceAll(s, "\u00a0", " ")
}

var defaultParsers = sync.OnceValue(func() map[bool]*Parser {
	return map[bool]*Parser{
		false: MustNewParser(Czech),
		true:  MustNewParser(German),
	}
})

// ForShop はショップ種別に対応する組み込みParserを返す。
// 返されるParserは共有されるため、Nowを書き換えないこと。
func ForShop(isAlternateLocale bool) *Parser {
	return defaultParsers()[isAlternateLocale]
}

// ExtractDeliveryDateTime は組み込みロケールで配達予定時刻を抽出する関数形式のAPI。
func ExtractDeliveryDateTime(htmlText string, isAlternateLocale bool, now time.Time) (time.Time, bool) {
	return ForShop(isAlternateLocale).ExtractAt(htmlText, now)
}
