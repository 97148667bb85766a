package cmd

import (
	"fmt"

	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/pipeline"

	"github.com/spf13/cobra"
)

// statusCmd は、ブック内の各章の生成状況を表示するのだ。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "各章の挿絵生成の状況を一覧しますなのだ。",
	RunE:  statusCommand,
}

func statusCommand(cmd *cobra.Command, args []string) error {
	if opts.Book == "" {
		return fmt.Errorf("--book を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts
	return pipeline.ExecuteStatus(cfg)
}
