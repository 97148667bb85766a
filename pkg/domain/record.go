package domain

// Status は章ごとの生成レコードが取り得る状態です。
// 遷移は absent→generating→{completed, error} に限定され、
// completed からの再生成は必ず Invalidate（レコード削除）を経由します。
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// CurrentSchemaVersion は ChapterRecord の永続化フォーマットの版数なのだ。
const CurrentSchemaVersion = 2

// CanTransition は prev から next への状態遷移が許されるかを判定します。
// prev が空文字列の場合は「レコード未存在」を意味します。
func CanTransition(prev, next Status) bool {
	switch prev {
	case "":
		return next == StatusGenerating
	case StatusGenerating:
		// generating→generating は逐次永続化の進捗更新として許容するのだ
		return next == StatusGenerating || next == StatusCompleted || next == StatusError
	case StatusError:
		// 失敗した章は再挑戦できる
		return next == StatusGenerating
	case StatusCompleted:
		// 完了済みの上書きは事故の元。Invalidate を経た明示的な再生成だけを認める。
		return false
	}
	return false
}

// ChapterRecord は1章ぶんの挿絵生成状態を表すキャッシュの単位です。
// ブックごとの JSON ドキュメント内に、章インデックスを文字列キーとして保存されます。
type ChapterRecord struct {
	Images            []string `json:"images"`
	Status            Status   `json:"status"`
	SceneLocations    []int    `json:"scene_locations,omitempty"`
	AnchorTexts       []string `json:"anchor_texts,omitempty"` // Images と並行。空文字列はアンカーなし
	Error             string   `json:"error,omitempty"`
	CurrentImageCount int      `json:"current_image_count"`
	SchemaVersion     int      `json:"schema_version"`
}

// NewGeneratingRecord は外部呼び出し前に書き込む初期レコードを返すのだ。
func NewGeneratingRecord() *ChapterRecord {
	return &ChapterRecord{
		Images:        []string{},
		Status:        StatusGenerating,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// LocationOrDefault は i 番目の位置フォールバックを返します。
// 記録が欠けている古いレコードでは均等割りに落ちます。
func (r *ChapterRecord) LocationOrDefault(i int) int {
	if i >= 0 && i < len(r.SceneLocations) {
		return r.SceneLocations[i]
	}
	return EvenLocationPercent(i, len(r.Images))
}

// AnchorOrEmpty は i 番目のアンカー文を返します。範囲外は空（アンカーなし）です。
func (r *ChapterRecord) AnchorOrEmpty(i int) string {
	if i >= 0 && i < len(r.AnchorTexts) {
		return r.AnchorTexts[i]
	}
	return ""
}
