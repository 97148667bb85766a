// Package extractor は章のテキストから「描くべき場面」を N 件取り出します。
package extractor

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/teristam/reader3/pkg/domain"
)

// DefaultMaxChapterChars は外部リクエスト制限を守るための本文プレフィックス長なのだ。
const DefaultMaxChapterChars = 50000

//go:embed prompts/scenes.md
var scenesPromptTemplate string

// TextGenerator は場面抽出に使うテキスト生成サービスの契約です。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Extractor は章テキストを SceneDescriptor の列に変換します。
type Extractor struct {
	gen      TextGenerator
	maxChars int
}

// New は Extractor を生成します。maxChars が 0 以下ならデフォルト値を使うのだ。
func New(gen TextGenerator, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChapterChars
	}
	return &Extractor{gen: gen, maxChars: maxChars}
}

// Extract は章テキストからちょうど n 件の場面記述を返します。
// 空の章は即座に空リスト。JSONの解析失敗は汎用場面へ退避し、
// 輸送路の失敗だけが ServiceError として伝播します。
func (e *Extractor) Extract(ctx context.Context, chapterText string, n int) ([]domain.SceneDescriptor, error) {
	if n <= 0 || strings.TrimSpace(chapterText) == "" {
		return nil, nil
	}

	prompt := buildPrompt(truncateRunes(chapterText, e.maxChars), n)

	raw, err := e.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, &domain.ServiceError{Op: "scene extraction", Err: err}
	}

	scenes, err := parseScenes(raw)
	if err != nil {
		// 解析失敗はパイプラインを止めない。位置フォールバックだけで配置できる汎用場面に退避するのだ。
		slog.Warn("場面JSONの解析に失敗したため汎用場面へフォールバックします",
			"error", err, "response_prefix", truncateRunes(raw, 200))
		return placeholderScenes(n), nil
	}

	return normalize(scenes, n), nil
}

// buildPrompt は埋め込みテンプレートに場面数と本文を差し込むのだ。
func buildPrompt(chapterText string, n int) string {
	r := strings.NewReplacer(
		"{{NUM_SCENES}}", strconv.Itoa(n),
		"{{CHAPTER_TEXT}}", chapterText,
	)
	return r.Replace(scenesPromptTemplate)
}

// wireScene は応答JSONの1場面です。省略と明示のゼロ値を区別するためポインタを使います。
type wireScene struct {
	SceneNumber     int     `json:"scene_number"`
	Summary         string  `json:"summary"`
	InsertAfterText *string `json:"insert_after_text"`
	LocationPercent *int    `json:"location_percent"`
}

type wireResponse struct {
	Scenes []wireScene `json:"scenes"`
}

// parseScenes は応答テキストをJSONとして解釈します。
// Markdownのコードフェンスで包まれている場合は先頭行と末尾行を剥がすのだ。
func parseScenes(raw string) ([]wireScene, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		lines := strings.Split(raw, "\n")
		if len(lines) > 2 {
			raw = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return resp.Scenes, nil
}

// normalize は wire 表現をちょうど n 件のドメイン記述へ整えます。
// 足りなければ汎用場面で詰め、多ければ先頭 n 件だけを残すのだ。
func normalize(scenes []wireScene, n int) []domain.SceneDescriptor {
	if len(scenes) > n {
		scenes = scenes[:n]
	}

	out := make([]domain.SceneDescriptor, 0, n)
	for i, ws := range scenes {
		d := domain.SceneDescriptor{
			SceneNumber:     i + 1, // 応答の連番は信用せず詰め直す
			Summary:         strings.TrimSpace(ws.Summary),
			LocationPercent: domain.EvenLocationPercent(i, n),
		}
		if d.Summary == "" {
			d.Summary = "An important scene from the chapter"
		}
		if ws.LocationPercent != nil {
			d.LocationPercent = clampPercent(*ws.LocationPercent)
		}
		if ws.InsertAfterText != nil && strings.TrimSpace(*ws.InsertAfterText) != "" {
			d.InsertAfterText = strings.TrimSpace(*ws.InsertAfterText)
		} else {
			slog.Info("場面にアンカー文が無いため位置フォールバックを使います", "scene", i+1)
		}
		out = append(out, d)
	}

	for i := len(out); i < n; i++ {
		out = append(out, domain.PlaceholderScene(i, n))
	}
	return out
}

func placeholderScenes(n int) []domain.SceneDescriptor {
	out := make([]domain.SceneDescriptor, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.PlaceholderScene(i, n))
	}
	return out
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
