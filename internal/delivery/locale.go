package delivery

// Locale はショップごとの配達案内の言語設定。
// キーワードは設定データとして保持し、正規表現は NewParser で組み立てる。
type Locale struct {
	// Name はロケール名（ログ用）。
	Name string
	// TimeZone は配達時刻を解釈するIANAタイムゾーン。
	TimeZone string
	// MinuteKeywords は「N分後」の「分」に相当する語。
	MinuteKeywords []string
	// DatePrepositions は「am 26.04.」の「am」に相当する語。
	// 空の場合は文章形式の日付+時刻パターンを使わない。
	DatePrepositions []string
	// TimePrepositions は「um 08:00」「gegen 08:00」に相当する語。
	// 空の場合は文章形式の時刻パターンを使わない。
	TimePrepositions []string
	// Qualifiers は「ca.」など「およそ」を表す修飾語。
	Qualifiers []string
}

// Czech はrohlik.cz向けのロケール。
var Czech = Locale{
	Name:           "cs",
	TimeZone:       "Europe/Prague",
	MinuteKeywords: []string{"minut", "minuty", "minutu", "min"},
}

// German はknuspr.de向けのロケール。
var German = Locale{
	Name:             "de",
	TimeZone:         "Europe/Berlin",
	MinuteKeywords:   []string{"Minuten", "Minute", "Min"},
	DatePrepositions: []string{"am"},
	TimePrepositions: []string{"um", "gegen"},
	Qualifiers:       []string{"ca.", "circa", "etwa", "ungefähr"},
}

// LocaleFor はショップ種別に対応するロケールを返す。
// isAlternate が true の場合はknuspr.de（ドイツ語）を返す。
func LocaleFor(isAlternate bool) Locale {
	if isAlternate {
		return German
	}
	return Czech
}
