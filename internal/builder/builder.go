package builder

import (
	"context"
	"fmt"

	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/runner"
	"github.com/teristam/reader3/pkg/extractor"
	"github.com/teristam/reader3/pkg/gemini"
	"github.com/teristam/reader3/pkg/store"
	"github.com/teristam/reader3/pkg/synthesizer"
)

// NewAppContext は設定から全コンポーネントを組み立てるのだ。
// Gemini クライアントは場面抽出と画像生成で共有するのだ。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	aiClient, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiImageModel)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗したのだ: %w", err)
	}

	st := store.New(cfg.Options.BooksDir)
	ex := extractor.New(aiClient, extractor.DefaultMaxChapterChars)
	sy := synthesizer.New(aiClient, synthesizer.DefaultMinImageBytes)
	run := runner.NewChapterIllustrationRunner(ex, sy, st, cfg.Options.ImageInterval)

	return &AppContext{
		Config:   cfg,
		Options:  cfg.Options,
		Store:    st,
		Runner:   run,
		aiClient: aiClient,
	}, nil
}

// NewReadOnlyAppContext は外部APIを使わないコマンド（status / render）向けの
// 軽量なコンテキストを組み立てるのだ。APIキーは不要なのだ。
func NewReadOnlyAppContext(cfg *config.Config) *AppContext {
	return &AppContext{
		Config:  cfg,
		Options: cfg.Options,
		Store:   store.New(cfg.Options.BooksDir),
	}
}
