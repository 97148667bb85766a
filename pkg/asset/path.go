// Package asset は生成画像の決定論的な保存パスと永続化を管理します。
package asset

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxTitleLength はファイル名に埋め込む章タイトルの上限長なのだ。
const DefaultMaxTitleLength = 50

// ImageDirName はブックディレクトリ直下の画像置き場です。HTML の src もこの相対パスを使います。
const ImageDirName = "images"

var squashRe = regexp.MustCompile(`[\s_]+`)

// SanitizeTitle は章タイトルをファイルシステム安全な形へ正規化します。
// 英数字・空白・ハイフン・アンダースコアを残し、句読点は落とし、
// その他は '_' に置換したうえで連続区切りを潰し、上限長へ切り詰めるのだ。
// 何も残らなければ "chapter" を返します。
func SanitizeTitle(title string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxTitleLength
	}

	var b strings.Builder
	for _, c := range title {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_':
			b.WriteRune(c)
		case strings.ContainsRune(`.,:;!?'"`, c):
			// 句読点は区切りにもしない。黙って捨てるのだ。
		default:
			b.WriteRune('_')
		}
	}

	s := squashRe.ReplaceAllString(b.String(), "_")
	s = strings.Trim(s, "_")

	if r := []rune(s); len(r) > maxLength {
		s = strings.TrimRight(string(r[:maxLength]), "_")
	}

	if s == "" {
		return "chapter"
	}
	return s
}

// ImageFileName は章インデックス・章タイトル・場面番号から安定したファイル名を組み立てます。
func ImageFileName(chapterIndex int, chapterTitle string, sceneNumber int) string {
	if chapterTitle != "" {
		return fmt.Sprintf("generated_ch%d_%s_scene%d.png",
			chapterIndex, SanitizeTitle(chapterTitle, DefaultMaxTitleLength), sceneNumber)
	}
	return fmt.Sprintf("generated_ch%d_scene%d.png", chapterIndex, sceneNumber)
}

// ImageRelPath はブックディレクトリ基準の相対パス（常にスラッシュ区切り）を返すのだ。
func ImageRelPath(chapterIndex int, chapterTitle string, sceneNumber int) string {
	return path.Join(ImageDirName, ImageFileName(chapterIndex, chapterTitle, sceneNumber))
}
