package builder

import (
	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/runner"
	"github.com/teristam/reader3/pkg/gemini"
	"github.com/teristam/reader3/pkg/store"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する。
// これを各 Execute 関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（対象の章、枚数など）。
	Store   *store.Store           // Storeは、生成記録と画像パスの永続化を担う JSON ストアです。
	Runner  runner.IllustrationRunner

	aiClient *gemini.Client // aiClient はGeminiの通信に使う共通クライアント
}

// Close は保持している外部接続を解放するのだ。
func (a *AppContext) Close() error {
	if a.aiClient != nil {
		return a.aiClient.Close()
	}
	return nil
}
