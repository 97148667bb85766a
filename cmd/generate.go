package cmd

import (
	"fmt"
	"log/slog"

	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、1章分の挿絵生成を実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIに1章分の挿絵を生成させますなのだ。",
	Long: `章のHTMLを解析して印象的な場面を選び、挿絵画像を生成するのだ。
生成結果はブックフォルダ内の images/ と generated_images.json に保存されるのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	if opts.Book == "" || opts.ChapterFile == "" {
		return fmt.Errorf("--book と --chapter-file を指定してほしいのだ")
	}

	// 環境変数等から基本設定をロードするのだ
	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("挿絵生成パイプラインを起動するのだ！",
		"book", opts.Book,
		"chapter", opts.Chapter,
		"num_images", opts.NumImages,
		"text_model", cfg.GeminiModel,
		"image_model", cfg.GeminiImageModel)

	if err := pipeline.ExecuteGenerate(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
