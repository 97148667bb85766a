package cmd

import (
	"fmt"
	"os"

	"github.com/teristam/reader3/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts はコマンドラインから渡された実行時パラメータを保持するのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 対象の指定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.BooksDir, "books-dir", "d", config.DefaultBooksDir, "ブックフォルダ群のルートディレクトリなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Book, "book", "b", "", "対象のブックID（ディレクトリ名）なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.Chapter, "chapter", "c", 0, "対象の章インデックスなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.ChapterFile, "chapter-file", "f", "", "章HTMLファイルのパスなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.BookTitle, "book-title", "", "画像のテーマ付けに使う書名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ChapterTitle, "chapter-title", "", "ファイル名に埋め込む章タイトルなのだ。")

	// --- 生成制御 ---
	rootCmd.PersistentFlags().IntVarP(&opts.NumImages, "num-images", "n", config.DefaultNumImages, "1章あたりの挿絵枚数なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Style, "style", "", "この実行だけ適用する画風の指示なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.Force, "force", false, "キャッシュを破棄して再生成するのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.ImageInterval, "image-interval", config.DefaultImageInterval, "画像生成呼び出しの間隔なのだ。")

	// --- 出力 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputFile, "output-file", "o", "", "render の出力先パス（空なら標準出力）なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
// status と render は外部APIを呼ばないので、APIキーなしでも動かせるのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "status", "render":
		return nil
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"reader3-illustrate",
		addAppFlags,
		preRunAppE,
		generateCmd,
		generateAllCmd,
		statusCmd,
		renderCmd,
	)
}
