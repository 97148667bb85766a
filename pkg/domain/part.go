package domain

// PartKind はAI応答パーツの閉じた種別集合です。
// API境界で一度だけ判別し、下流は属性の有無を探らずこの種別で分岐します。
type PartKind int

const (
	PartEmpty PartKind = iota // 利用可能なペイロードを持たないパーツ
	PartText                  // テキスト（JSON台本や、まれに base64 画像が紛れ込む）
	PartImage                 // インラインのバイナリ画像
)

// ContentPart は生成AIの応答から取り出した1パーツなのだ。
// Kind に応じて Text か Data のどちらか一方だけが意味を持つ。
type ContentPart struct {
	Kind PartKind
	Text string
	Data []byte
	MIME string
}

// TextPart はテキストパーツを作るヘルパーです。
func TextPart(s string) ContentPart {
	return ContentPart{Kind: PartText, Text: s}
}

// ImagePart はバイナリ画像パーツを作るヘルパーです。
func ImagePart(data []byte, mime string) ContentPart {
	return ContentPart{Kind: PartImage, Data: data, MIME: mime}
}
