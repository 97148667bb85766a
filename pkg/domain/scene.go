package domain

// SceneDescriptor は章の中から特定された「描くに値する一場面」の記述です。
// AI が返す JSON の scenes 配列の1要素にそのまま対応します。
type SceneDescriptor struct {
	SceneNumber     int    `json:"scene_number"`      // 1始まりの連番
	Summary         string `json:"summary"`           // 画像プロンプトの素材になる視覚的な要約
	InsertAfterText string `json:"insert_after_text"` // 本文中に実在するはずの挿入位置アンカー（空なら未指定）
	LocationPercent int    `json:"location_percent"`  // アンカーが使えない場合の 0-100 位置フォールバック
}

// HasAnchor はアンカー文が指定されているかどうかを返すのだ。
func (s SceneDescriptor) HasAnchor() bool {
	return s.InsertAfterText != ""
}

// EvenLocationPercent は n 場面中 i 番目（0始まり）に均等割りした位置を返します。
// n=3 のとき 25, 50, 75 となり、元の配分と一致します。
func EvenLocationPercent(i, n int) int {
	if n <= 0 {
		return 0
	}
	return 100 * (i + 1) / (n + 1)
}

// PlaceholderScene は抽出に失敗した場面の代わりに使う汎用的な記述を生成するのだ。
// アンカーは持たないため、配置は位置フォールバックに委ねられる。
func PlaceholderScene(i, n int) SceneDescriptor {
	return SceneDescriptor{
		SceneNumber:     i + 1,
		Summary:         "An important scene from the chapter",
		LocationPercent: EvenLocationPercent(i, n),
	}
}
