package asset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Library は1ブックぶんの画像アセットの読み書きを担います。
// パスはすべてブックディレクトリ基準の相対パスで受け渡しするのだ。
type Library struct {
	bookDir string
}

// NewLibrary は指定ブックディレクトリのアセットライブラリを返します。
func NewLibrary(bookDir string) *Library {
	return &Library{bookDir: bookDir}
}

// Save は画像バイト列を相対パスへ書き込み、そのまま相対パスを返します。
// 画像ディレクトリが無ければ作るのだ。
func (l *Library) Save(relPath string, data []byte) (string, error) {
	full := filepath.Join(l.bookDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("asset: 画像ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("asset: 画像の保存に失敗しました: %w", err)
	}
	return relPath, nil
}

// Exists は相対パスのアセットが実在するかを返します。
func (l *Library) Exists(relPath string) bool {
	info, err := os.Stat(filepath.Join(l.bookDir, filepath.FromSlash(relPath)))
	return err == nil && !info.IsDir()
}
