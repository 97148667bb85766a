package domain

import (
	"errors"
	"fmt"
)

// 画像応答の失敗を区別するためのセンチネルなのだ。
// オーケストレーターはこれらを errors.Is で分類し、利用者向けの説明文に変換する。
var (
	// ErrNoImageData は応答のどのパーツにも画像ペイロードが含まれなかったことを示す。
	ErrNoImageData = errors.New("no image data found in response")

	// ErrSafetyBlocked は画像生成がセーフティフィルタに遮断されたことを示す。
	ErrSafetyBlocked = errors.New("image generation blocked by safety filters")
)

// ServiceError は外部サービス呼び出し自体の失敗（ネットワーク、認証、クォータ等）です。
// エンジン内ではリトライせず、そのまま伝播して error レコードとして記録されます。
type ServiceError struct {
	Op  string // "scene extraction" / "image generation"
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service call failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// PayloadSizeError は画像ペイロードが下限に満たなかったことを示す検証エラーです。
// 診断のため実際のバイト数を保持するのだ。
type PayloadSizeError struct {
	Size int
	Min  int
}

func (e *PayloadSizeError) Error() string {
	return fmt.Sprintf("image payload too small: %d bytes (minimum %d)", e.Size, e.Min)
}

// PayloadFormatError はペイロードが既知の画像フォーマットとして始まっていないことを示します。
type PayloadFormatError struct {
	Detected string // コンテンツスニッフィングの結果
}

func (e *PayloadFormatError) Error() string {
	return fmt.Sprintf("payload does not look like an image (detected %q)", e.Detected)
}
