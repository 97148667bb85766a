// Package synthesizer は1場面の要約を検証済みの画像バイト列へ変換します。
package synthesizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/teristam/reader3/pkg/domain"
)

const (
	// DefaultMinImageBytes を下回るペイロードはエラー応答やプレースホルダの可能性が高いため拒否するのだ。
	DefaultMinImageBytes = 1000

	// DefaultStyleDirective は書籍の挿絵として成立させるための必須スタイル指示です。
	DefaultStyleDirective = "painterly literary book illustration, rich atmosphere, cinematic lighting, detailed and evocative, high quality"
)

// ImageGenerator は画像生成サービスの契約です。応答は閉じたパーツ集合で受け取ります。
type ImageGenerator interface {
	GenerateParts(ctx context.Context, prompt string) ([]domain.ContentPart, error)
}

// Synthesizer は場面要約から画像を合成し、サイズとマジックヘッダを検証します。
type Synthesizer struct {
	gen      ImageGenerator
	minBytes int
}

// New は Synthesizer を生成します。minBytes が 0 以下ならデフォルトの下限を使うのだ。
func New(gen ImageGenerator, minBytes int) *Synthesizer {
	if minBytes <= 0 {
		minBytes = DefaultMinImageBytes
	}
	return &Synthesizer{gen: gen, minBytes: minBytes}
}

// Synthesize は1場面ぶんの検証済み画像バイト列を返します。
// セーフティ遮断・データ欠落・検証失敗はそれぞれ区別可能なエラーとして返るのだ。
func (s *Synthesizer) Synthesize(ctx context.Context, summary, bookTitle, style string) ([]byte, error) {
	prompt := BuildPrompt(summary, bookTitle, style)

	parts, err := s.gen.GenerateParts(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrSafetyBlocked) {
			return nil, err
		}
		return nil, &domain.ServiceError{Op: "image generation", Err: err}
	}

	data, err := pickImagePayload(parts)
	if err != nil {
		return nil, err
	}
	if err := s.validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// pickImagePayload は応答パーツから最初に使える画像ペイロードを選びます。
// バイナリパーツを優先し、テキストパーツは base64 画像の可能性として試すのだ。
func pickImagePayload(parts []domain.ContentPart) ([]byte, error) {
	for _, p := range parts {
		switch p.Kind {
		case domain.PartImage:
			if len(p.Data) > 0 {
				return p.Data, nil
			}
		case domain.PartText:
			if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Text)); err == nil && len(decoded) > 0 {
				return decoded, nil
			}
			// base64 でなければ説明文などのテキスト応答。画像ではないので読み飛ばす。
		}
	}
	return nil, domain.ErrNoImageData
}

// validate はサイズ下限とマジックヘッダの2点でペイロードを受け入れ判定します。
func (s *Synthesizer) validate(data []byte) error {
	if len(data) < s.minBytes {
		return &domain.PayloadSizeError{Size: len(data), Min: s.minBytes}
	}
	detected := http.DetectContentType(data)
	if !strings.HasPrefix(detected, "image/") {
		return &domain.PayloadFormatError{Detected: detected}
	}
	return nil
}

// BuildPrompt は要約・書籍コンテキスト・スタイル指示を1つの描画プロンプトへ合成します。
// スタイル指示は必須で、未指定なら既定の挿絵スタイルに落ちるのだ。
func BuildPrompt(summary, bookTitle, style string) string {
	if strings.TrimSpace(style) == "" {
		style = DefaultStyleDirective
	}

	var sb strings.Builder
	sb.WriteString("Create a detailed, cinematic illustration of this scene")
	if bookTitle != "" {
		sb.WriteString(fmt.Sprintf(" from the book '%s'", bookTitle))
	} else {
		sb.WriteString(" from a book")
	}
	sb.WriteString(":\n\n")
	sb.WriteString(summary)
	sb.WriteString("\n\nSTYLE: ")
	sb.WriteString(style)
	if bookTitle != "" {
		sb.WriteString(fmt.Sprintf(", consistent with the themes of '%s'", bookTitle))
	}
	sb.WriteString("\nThe image must capture the mood and atmosphere of the scene and be suitable as a book illustration. Do not include any text or lettering in the image.")
	return sb.String()
}
