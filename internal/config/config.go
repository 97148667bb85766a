package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel      = "gemini-2.0-flash-exp" // 場面抽出用のテキストモデル
	DefaultImageModel = "gemini-2.5-flash-image"

	DefaultBooksDir      = "."              // 処理済みブックのフォルダが並ぶルート
	DefaultNumImages     = 3                // 1章あたりの挿絵枚数
	DefaultImageInterval = 10 * time.Second // 画像生成呼び出しの間隔（レート制限対策）
)

// Config はアプリケーション全体の環境設定（APIキーやモデル設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	StyleDirective   string // 全挿絵に共通で適用する画風の指示。空なら Synthesizer の既定に任せる

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	return &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		StyleDirective:   envutil.GetEnv("IMAGE_STYLE_SUFFIX", ""),
	}
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 対象の指定
	BooksDir     string // --books-dir: ブックフォルダ群のルート
	Book         string // --book: ブックID（ディレクトリ名）
	Chapter      int    // --chapter: スパイン内の章インデックス
	ChapterFile  string // --chapter-file: 章HTMLファイルのパス
	BookTitle    string // --book-title: 画像のテーマ付けに使う書名
	ChapterTitle string // --chapter-title: ファイル名に埋め込む章タイトル

	// 生成制御
	NumImages int    // --num-images
	Style     string // --style: この実行だけのスタイル上書き
	Force     bool   // --force: キャッシュを破棄して再生成

	// 出力
	OutputFile string // --output-file: render の出力先（空なら標準出力）

	// 実行制御
	ImageInterval time.Duration // --image-interval: 画像生成呼び出しの間隔
}
