package cmd

import (
	"fmt"
	"log/slog"

	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateAllCmd は、ブック内の全章に対して挿絵生成を実行するのだ。
var generateAllCmd = &cobra.Command{
	Use:   "generate-all",
	Short: "ブック内の全章の挿絵をまとめて生成しますなのだ。",
	Long: `ブックフォルダ直下の chapter_*.html をすべて対象に挿絵を生成するのだ。
生成済みの章はキャッシュが使われるので、途中で止めても再開できるのだよ。`,
	RunE: generateAllCommand,
}

func generateAllCommand(cmd *cobra.Command, args []string) error {
	if opts.Book == "" {
		return fmt.Errorf("--book を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("全章の挿絵生成パイプラインを起動するのだ！",
		"book", opts.Book,
		"num_images", opts.NumImages)

	if err := pipeline.ExecuteGenerateAll(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}
	return nil
}
