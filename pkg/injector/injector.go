// Package injector は章HTMLの段落ストリームへ画像マークアップを継ぎ足します。
// 段落ストリームは読み取りのたびに作り直し、永続化は一切しません。
package injector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teristam/reader3/pkg/anchor"
	"github.com/teristam/reader3/pkg/domain"
)

// imgTagFormat の style は幅と中央寄せの構造的な制約だけを担う。見た目の演出は画像側の仕事なのだ。
const imgTagFormat = `<img src="%s" alt="Generated illustration for scene" style="max-width: 100%%; height: auto; display: block; margin: 20px auto;"/>`

// insertion は1画像ぶんの挿入計画です。
type insertion struct {
	index int    // この段落の直後に挿す
	scene int    // 1始まりの場面順。同一添字のタイブレークに使う
	img   string // 相対画像パス
}

// Inject は章HTMLへ画像を挿入して返します。images が空なら入力をそのまま返す恒等写像です。
// locations と anchors は images と並行なリストで、不足分は均等割り・アンカーなしとして扱うのだ。
func Inject(htmlContent string, images []string, locations []int, anchors []string) (string, error) {
	if len(images) == 0 {
		return htmlContent, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("injector: 章HTMLの解析に失敗しました: %w", err)
	}

	paragraphs := doc.Find("p")
	texts := paragraphTexts(paragraphs)

	if len(texts) == 0 {
		// 段落が無い文書では順序どおり末尾に並べる
		body := doc.Find("body")
		for _, img := range images {
			body.AppendHtml(fmt.Sprintf(imgTagFormat, img))
		}
		return doc.Html()
	}

	plans := make([]insertion, 0, len(images))
	for i, img := range images {
		percent := domain.EvenLocationPercent(i, len(images))
		if i < len(locations) {
			percent = locations[i]
		}
		anchorText := ""
		if i < len(anchors) {
			anchorText = anchors[i]
		}
		plans = append(plans, insertion{
			index: anchor.Resolve(texts, anchorText, percent, i+1),
			scene: i + 1,
			img:   img,
		})
	}

	// 添字の降順で挿入する。後段の挿入が既に計算済みの添字より構造的に
	// 手前へ入ることがなくなり、元の段落リスト基準の添字がそのまま使える。
	// 同一添字は場面番号の降順に処理して、文書上では場面順が保たれるのだ。
	sort.Slice(plans, func(a, b int) bool {
		if plans[a].index != plans[b].index {
			return plans[a].index > plans[b].index
		}
		return plans[a].scene > plans[b].scene
	})

	for _, p := range plans {
		paragraphs.Eq(p.index).AfterHtml(fmt.Sprintf(imgTagFormat, p.img))
	}

	// doctype や head ごと文書全体を返す。body だけを切り出すと
	// 章のタイトルやスタイルシートのリンクが失われてしまうのだ。
	return doc.Html()
}

// ExtractText は章HTMLから平文を取り出します。段落テキストを空行で連結し、
// 段落の無い文書では文書全体のテキストに落ちるのだ。
func ExtractText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("injector: 章HTMLの解析に失敗しました: %w", err)
	}

	texts := paragraphTexts(doc.Find("p"))
	if len(texts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(texts, "\n\n"), nil
}

func paragraphTexts(sel *goquery.Selection) []string {
	var texts []string
	sel.Each(func(_ int, p *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(p.Text()))
	})
	return texts
}
