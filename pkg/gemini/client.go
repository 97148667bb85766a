// Package gemini は Gemini API との境界です。
// 応答の解体はここで一度だけ行い、下流には閉じた ContentPart 集合だけを渡します。
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/teristam/reader3/pkg/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client はテキスト生成と画像生成の両方を担う Gemini クライアントなのだ。
type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

// New は API キーからクライアントを初期化します。
func New(ctx context.Context, apiKey, textModel, imageModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: APIキーが空です")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: クライアントの初期化に失敗しました: %w", err)
	}
	return &Client{
		client:     cl,
		textModel:  textModel,
		imageModel: imageModel,
	}, nil
}

// Close は下位のコネクションを解放するのだ。
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateText はテキストモデルに1プロンプトを投げ、応答のテキスト部分を連結して返します。
// JSON を期待する呼び出しなので ResponseMIMEType を固定するのだ。
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	m := c.client.GenerativeModel(c.textModel)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0.4),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String(), nil
}

// GenerateParts は画像モデルに1プロンプトを投げ、応答パーツをタグ付きの閉じた集合へ解体して返します。
// セーフティ遮断はこの境界で判別し、ErrSafetyBlocked として浮かび上がらせるのだ。
func (c *Client) GenerateParts(ctx context.Context, prompt string) ([]domain.ContentPart, error) {
	m := c.client.GenerativeModel(c.imageModel)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	if blocked(resp) {
		return nil, domain.ErrSafetyBlocked
	}

	var parts []domain.ContentPart
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			parts = append(parts, decodePart(p))
		}
	}
	return parts, nil
}

// decodePart は SDK のパーツ型を ContentPart へ写像します。未知の型は Empty です。
func decodePart(p genai.Part) domain.ContentPart {
	switch v := p.(type) {
	case genai.Text:
		if string(v) == "" {
			return domain.ContentPart{Kind: domain.PartEmpty}
		}
		return domain.TextPart(string(v))
	case genai.Blob:
		return domain.ImagePart(v.Data, v.MIMEType)
	case *genai.Blob:
		return domain.ImagePart(v.Data, v.MIMEType)
	default:
		return domain.ContentPart{Kind: domain.PartEmpty}
	}
}

// blocked は応答全体がセーフティフィルタで遮断されたかを判定するのだ。
func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason == genai.BlockReasonSafety {
		return true
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return true
		}
	}
	return false
}

func ptrFloat32(v float32) *float32 { return &v }
