// Package anchor は場面記述を段落ストリーム上の挿入位置へ解決します。
//
// LLM が返すアンカー文は言い換えや空白ズレを起こしがちなので、
// 厳密一致 → 全文類似 → 部分類似 → 位置フォールバック の段階で解決し、
// どんな入力でも必ず有効な添字を返す全域関数にしてあるのだ。
package anchor

import (
	"log/slog"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

const (
	// RatioThreshold は全文類似（ステップ3）の採用下限スコアです。
	RatioThreshold = 80
	// PartialRatioThreshold は部分類似（ステップ4）の採用下限スコアです。
	// 長い段落の一部にアンカーが埋まるケースを拾う分、誤爆しやすいので厳しめなのだ。
	PartialRatioThreshold = 85
)

// Resolve は「この段落の直後に挿入せよ」という段落添字を返します。
// sceneNumber は診断ログのためだけに使います。
func Resolve(paragraphs []string, anchorText string, percent, sceneNumber int) int {
	if len(paragraphs) == 0 {
		// 空の段落ストリームは呼び出し側（インジェクター）が末尾追記で扱う。落ちないことだけ保証する。
		return 0
	}

	anchorText = strings.TrimSpace(anchorText)
	if anchorText == "" {
		return percentIndex(percent, len(paragraphs))
	}

	normAnchor := normalize(anchorText)

	// ステップ2: 大文字小文字と空白を正規化した部分文字列の厳密一致。安くて正確なのだ。
	for i, p := range paragraphs {
		if strings.Contains(normalize(p), normAnchor) {
			slog.Debug("アンカーが厳密一致しました", "scene", sceneNumber, "paragraph", i)
			return i
		}
	}

	// ステップ3: 全文類似。言い換えの揺れをスコアで吸収する。
	bestIdx, bestScore := -1, -1
	for i, p := range paragraphs {
		if score := fuzzy.Ratio(normAnchor, normalize(p)); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore >= RatioThreshold {
		slog.Debug("アンカーが全文類似で一致しました", "scene", sceneNumber, "paragraph", bestIdx, "score", bestScore)
		return bestIdx
	}

	// ステップ4: 部分類似。アンカーが長い段落の連続部分に対応するケースを救うのだ。
	bestIdx, bestScore = -1, -1
	for i, p := range paragraphs {
		if score := fuzzy.PartialRatio(normAnchor, normalize(p)); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore >= PartialRatioThreshold {
		slog.Debug("アンカーが部分類似で一致しました", "scene", sceneNumber, "paragraph", bestIdx, "score", bestScore)
		return bestIdx
	}

	// ステップ5: 完全に見つからなければ位置フォールバック。
	idx := percentIndex(percent, len(paragraphs))
	slog.Debug("アンカーの一致に失敗したため位置フォールバックを使います",
		"scene", sceneNumber, "percent", percent, "paragraph", idx)
	return idx
}

// percentIndex は 0-100 の位置推定を段落添字へ射影し、有効範囲にクランプします。
func percentIndex(percent, total int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	idx := percent * total / 100
	if idx >= total {
		idx = total - 1
	}
	return idx
}

// normalize は比較用に小文字化し、あらゆる空白の並びを単一スペースに潰すのだ。
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
