package normalize

import "github.com/mkurosawa/kaiji/internal/event"

// DefaultCompanies maps well-known company names, as they appear in
// disclosure titles, to their securities codes. Config may extend this.
var DefaultCompanies = map[string]string{
	"トヨタ自動車":       "7203",
	"ソニーグループ":      "6758",
	"ソフトバンクグループ":   "9984",
	"任天堂":          "7974",
	"キーエンス":        "6861",
	"三菱UFJフィナンシャル": "8306",
	"三井物産":         "8031",
	"日立製作所":        "6501",
	"ファーストリテイリング":  "9983",
	"東京エレクトロン":     "8035",
	"武田薬品工業":       "4502",
	"日本電信電話":       "9432",
	"KDDI":         "9433",
	"村田製作所":        "6981",
	"信越化学工業":       "4063",
}

// DefaultKeywords is the category keyword dictionary tested against
// title+excerpt, case-insensitively. Matching iterates event.Categories
// in order; the first category with a hit wins, so precedence is fixed
// by that slice, never by map iteration.
var DefaultKeywords = map[event.Category][]string{
	event.CategoryUpwardRevision: {"上方修正", "業績予想の修正", "upward revision"},
	event.CategoryCapitalPolicy:  {"自己株式", "自社株買い", "増配", "株式分割", "配当予想", "buyback", "dividend"},
	event.CategoryPartnership:    {"業務提携", "資本提携", "共同開発", "合弁", "partnership", "alliance"},
	event.CategoryIncident:       {"不祥事", "不適切", "調査委員会", "データ改ざん", "リコール", "情報漏えい", "recall"},
	event.CategoryRegulation:     {"行政処分", "課徴金", "業務改善命令", "立入検査", "独占禁止法", "sanction"},
	event.CategoryEarnings:       {"決算短信", "決算説明", "四半期決算", "通期決算", "earnings", "financial results"},
	event.CategoryGuidance:       {"業績予想", "見通し", "下方修正", "guidance", "outlook", "forecast"},
	event.CategoryNewProduct:     {"新製品", "新サービス", "発売", "提供開始", "launch", "new product"},
	event.CategoryOrderWin:       {"受注", "契約締結", "採用決定", "落札", "order win", "contract award"},
}

// trackingParams are query parameters stripped during URL
// normalization. utm_* parameters are stripped by prefix in addition
// to this set.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"yclid":  true,
	"igshid": true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
	"cmpid":  true,
}
