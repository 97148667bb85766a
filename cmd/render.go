package cmd

import (
	"fmt"

	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/pipeline"

	"github.com/spf13/cobra"
)

// renderCmd は、キャッシュ済みの挿絵を章HTMLに差し込んで出力するのだ。
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "生成済みの挿絵を章HTMLに差し込みますなのだ。",
	Long: `キャッシュされた挿絵を本文の適切な位置に差し込んだHTMLを出力するのだ。
外部APIは呼ばないので、生成済みの章にだけ使えるのだよ。`,
	RunE: renderCommand,
}

func renderCommand(cmd *cobra.Command, args []string) error {
	if opts.Book == "" || opts.ChapterFile == "" {
		return fmt.Errorf("--book と --chapter-file を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts
	return pipeline.ExecuteRender(cfg)
}
