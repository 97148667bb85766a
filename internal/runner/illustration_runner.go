package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/teristam/reader3/pkg/asset"
	"github.com/teristam/reader3/pkg/domain"
)

// DefaultSceneCount は枚数指定が省略されたときの挿絵枚数なのだ。
const DefaultSceneCount = 3

// SceneExtractor は章テキストから挿絵にすべき場面を選び出すコンポーネントなのだ。
type SceneExtractor interface {
	Extract(ctx context.Context, chapterText string, numScenes int) ([]domain.SceneDescriptor, error)
}

// ImageSynthesizer は場面の要約から1枚の画像バイト列を生成するコンポーネントなのだ。
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, summary, bookTitle, style string) ([]byte, error)
}

// RecordStore は章ごとの生成記録と画像ファイルの永続化を担うのだ。
type RecordStore interface {
	Read(book string, chapter int) (*domain.ChapterRecord, error)
	Write(book string, chapter int, rec *domain.ChapterRecord) error
	Invalidate(book string, chapter int) error
	CachedImages(book string, chapter, want int) []string
	BookDir(book string) string
}

// GenerateRequest は1章分の挿絵生成に必要な入力をまとめた構造体なのだ。
type GenerateRequest struct {
	Book         string
	Chapter      int
	ChapterText  string // プレーンテキスト化済みの章本文
	BookTitle    string
	ChapterTitle string
	NumImages    int
	Style        string // 空なら既定の画風を使う
	Force        bool
}

// IllustrationRunner は1章分の挿絵生成フローを実行するインターフェースなのだ。
type IllustrationRunner interface {
	Run(ctx context.Context, req GenerateRequest) ([]string, error)
}

// ChapterIllustrationRunner は抽出→合成→保存→記録のオーケストレーションを担う実装なのだ。
// 画像生成の呼び出しは limiter で間隔を空けて、APIのレート制限を踏まないようにするのだ。
type ChapterIllustrationRunner struct {
	extractor   SceneExtractor
	synthesizer ImageSynthesizer
	store       RecordStore
	limiter     *rate.Limiter
}

// NewChapterIllustrationRunner はランナーを生成するのだ。
// interval が 0 以下なら待ち時間なしで実行するのだ（テスト用）。
func NewChapterIllustrationRunner(ex SceneExtractor, sy ImageSynthesizer, st RecordStore, interval time.Duration) *ChapterIllustrationRunner {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if interval > 0 {
		// 最初の1枚は即時、2枚目以降は interval ごとなのだ
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &ChapterIllustrationRunner{
		extractor:   ex,
		synthesizer: sy,
		store:       st,
		limiter:     limiter,
	}
}

// Run は1章分の挿絵を生成して、ブックフォルダ相対の画像パス一覧を返すのだ。
//
// 有効なキャッシュがあれば外部APIを一切呼ばずにそれを返すのだ。
// 記録はあるが使えない（枚数不一致・未完了・ファイル欠損）場合は破棄して作り直すのだ。
// 途中で1枚でも失敗したら、そこまでの成果を error 記録に残して即座に中断するのだ。
func (r *ChapterIllustrationRunner) Run(ctx context.Context, req GenerateRequest) ([]string, error) {
	if req.NumImages <= 0 {
		req.NumImages = DefaultSceneCount
	}

	log := slog.With("book", req.Book, "chapter", req.Chapter)

	// 本文が空の章（目次や白紙ページ）には何も作らないのだ
	if strings.TrimSpace(req.ChapterText) == "" {
		log.Info("章本文が空なので挿絵生成をスキップするのだ")
		return []string{}, nil
	}

	if !req.Force {
		if cached := r.store.CachedImages(req.Book, req.Chapter, req.NumImages); cached != nil {
			log.Info("キャッシュ済みの挿絵を再利用するのだ", "count", len(cached))
			return cached, nil
		}
	}

	// 使えない記録（強制再生成・枚数違い・中断の残骸）は画像ごと破棄するのだ
	prev, err := r.store.Read(req.Book, req.Chapter)
	if err != nil {
		return nil, fmt.Errorf("既存記録の読み込みに失敗したのだ: %w", err)
	}
	if prev != nil {
		log.Info("既存の記録を破棄して再生成するのだ", "prev_status", prev.Status, "force", req.Force)
		if err := r.store.Invalidate(req.Book, req.Chapter); err != nil {
			return nil, fmt.Errorf("既存記録の破棄に失敗したのだ: %w", err)
		}
	}

	if err := r.store.Write(req.Book, req.Chapter, domain.NewGeneratingRecord()); err != nil {
		return nil, fmt.Errorf("生成開始の記録に失敗したのだ: %w", err)
	}

	scenes, err := r.extractor.Extract(ctx, req.ChapterText, req.NumImages)
	if err != nil {
		r.writeErrorRecord(req, nil, nil, nil, userMessage(err))
		return nil, fmt.Errorf("場面抽出に失敗したのだ: %w", err)
	}

	lib := asset.NewLibrary(r.store.BookDir(req.Book))

	var (
		paths     []string
		locations []int
		anchors   []string
	)
	for _, scene := range scenes {
		if err := r.limiter.Wait(ctx); err != nil {
			r.writeErrorRecord(req, paths, locations, anchors, userMessage(err))
			return nil, err
		}

		log.Info("挿絵を生成するのだ", "scene", scene.SceneNumber, "summary", scene.Summary)
		data, err := r.synthesizer.Synthesize(ctx, scene.Summary, req.BookTitle, req.Style)
		if err != nil {
			r.writeErrorRecord(req, paths, locations, anchors, userMessage(err))
			return nil, fmt.Errorf("場面 %d の画像生成に失敗したのだ: %w", scene.SceneNumber, err)
		}

		relPath := asset.ImageRelPath(req.Chapter, req.ChapterTitle, scene.SceneNumber)
		if _, err := lib.Save(relPath, data); err != nil {
			r.writeErrorRecord(req, paths, locations, anchors, userMessage(err))
			return nil, fmt.Errorf("場面 %d の画像保存に失敗したのだ: %w", scene.SceneNumber, err)
		}

		paths = append(paths, relPath)
		locations = append(locations, scene.LocationPercent)
		anchors = append(anchors, scene.InsertAfterText)

		// 1枚できるたびに記録を更新して、進捗を外から観測できるようにするのだ
		progress := &domain.ChapterRecord{
			Images:            append([]string{}, paths...),
			Status:            domain.StatusGenerating,
			SceneLocations:    append([]int{}, locations...),
			AnchorTexts:       append([]string{}, anchors...),
			CurrentImageCount: len(paths),
			SchemaVersion:     domain.CurrentSchemaVersion,
		}
		if err := r.store.Write(req.Book, req.Chapter, progress); err != nil {
			return nil, fmt.Errorf("進捗の記録に失敗したのだ: %w", err)
		}
	}

	final := &domain.ChapterRecord{
		Images:            paths,
		Status:            domain.StatusCompleted,
		SceneLocations:    locations,
		AnchorTexts:       anchors,
		CurrentImageCount: len(paths),
		SchemaVersion:     domain.CurrentSchemaVersion,
	}
	if err := r.store.Write(req.Book, req.Chapter, final); err != nil {
		return nil, fmt.Errorf("完了の記録に失敗したのだ: %w", err)
	}

	log.Info("挿絵生成が完了したのだ", "count", len(paths))
	return paths, nil
}

// writeErrorRecord は失敗時点までの成果を error 状態で記録するのだ。
// 生成済みの画像パスも残しておけば、次回の Invalidate で確実に掃除できるのだ。
func (r *ChapterIllustrationRunner) writeErrorRecord(req GenerateRequest, paths []string, locations []int, anchors []string, msg string) {
	if paths == nil {
		paths = []string{}
	}
	rec := &domain.ChapterRecord{
		Images:            paths,
		Status:            domain.StatusError,
		SceneLocations:    locations,
		AnchorTexts:       anchors,
		Error:             msg,
		CurrentImageCount: len(paths),
		SchemaVersion:     domain.CurrentSchemaVersion,
	}
	if err := r.store.Write(req.Book, req.Chapter, rec); err != nil {
		slog.Error("エラー記録の書き込みに失敗したのだ", "book", req.Book, "chapter", req.Chapter, "error", err)
	}
}

// userMessage は内部エラーを記録向けの平易なメッセージに変換するのだ。
func userMessage(err error) string {
	var (
		sizeErr   *domain.PayloadSizeError
		formatErr *domain.PayloadFormatError
		svcErr    *domain.ServiceError
	)
	switch {
	case errors.Is(err, domain.ErrSafetyBlocked):
		return "blocked by safety filters"
	case errors.Is(err, domain.ErrNoImageData):
		return "no image data received"
	case errors.As(err, &sizeErr):
		return fmt.Sprintf("image too small (%d bytes)", sizeErr.Size)
	case errors.As(err, &formatErr):
		return "invalid image data received"
	case errors.As(err, &svcErr) && svcErr.Op == "scene extraction":
		return fmt.Sprintf("scene extraction failed: %v", svcErr.Err)
	default:
		return fmt.Sprintf("generation error: %v", err)
	}
}
