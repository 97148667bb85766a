package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/teristam/reader3/internal/builder"
	"github.com/teristam/reader3/internal/config"
	"github.com/teristam/reader3/internal/runner"
	"github.com/teristam/reader3/pkg/domain"
	"github.com/teristam/reader3/pkg/injector"
)

// generate-all で同時に処理する章の数なのだ。
// 画像APIの呼び出し自体は共有リミッターで直列化されるのだ。
const batchConcurrency = 2

// ExecuteGenerate は、1章分のHTMLを読み込んで挿絵を生成するのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	paths, err := generateChapter(ctx, appCtx, cfg.Options.ChapterFile, cfg.Options.Chapter, cfg.Options.ChapterTitle)
	if err != nil {
		return err
	}

	slog.Info("挿絵生成が完了したのだ！", "chapter", cfg.Options.Chapter, "images", paths)
	return nil
}

// ExecuteGenerateAll は、ブックフォルダ内の全章HTMLに対して挿絵を生成するのだ。
// 章は少数ずつ並行で処理するが、キャッシュ済みの章は即座にスキップされるのだ。
func ExecuteGenerateAll(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	files, err := chapterFiles(appCtx.Store.BookDir(cfg.Options.Book))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("ブック '%s' に章HTMLが見つからないのだ", cfg.Options.Book)
	}
	slog.Info("全章の挿絵生成を開始するのだ", "book", cfg.Options.Book, "chapters", len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, cf := range files {
		g.Go(func() error {
			if _, err := generateChapter(gctx, appCtx, cf.path, cf.index, ""); err != nil {
				return fmt.Errorf("章 %d: %w", cf.index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("全章の挿絵生成が完了したのだ！", "book", cfg.Options.Book)
	return nil
}

// ExecuteStatus は、ブック内の各章の生成状況を一覧表示するのだ。
func ExecuteStatus(cfg *config.Config) error {
	appCtx := builder.NewReadOnlyAppContext(cfg)

	chapters, err := appCtx.Store.Chapters(cfg.Options.Book)
	if err != nil {
		return fmt.Errorf("記録の読み込みに失敗したのだ: %w", err)
	}
	if len(chapters) == 0 {
		fmt.Printf("ブック '%s' の生成記録はまだないのだ\n", cfg.Options.Book)
		return nil
	}

	indexes := make([]int, 0, len(chapters))
	for idx := range chapters {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		rec := chapters[idx]
		switch rec.Status {
		case domain.StatusCompleted:
			// 記録だけでなく実ファイルの存在まで確認するのだ
			live := appCtx.Store.CachedImages(cfg.Options.Book, idx, len(rec.Images))
			mark := "ok"
			if live == nil {
				mark = "missing files"
			}
			fmt.Printf("chapter %3d  completed   %d images (%s)\n", idx, len(rec.Images), mark)
		case domain.StatusGenerating:
			fmt.Printf("chapter %3d  generating  %d images so far\n", idx, rec.CurrentImageCount)
		case domain.StatusError:
			fmt.Printf("chapter %3d  error       %s\n", idx, rec.Error)
		default:
			fmt.Printf("chapter %3d  %s\n", idx, rec.Status)
		}
	}
	return nil
}

// ExecuteRender は、キャッシュ済みの挿絵を章HTMLに差し込んで出力するのだ。
// 外部APIは呼ばない純粋な読み取り処理なのだ。有効なキャッシュがなければ原文をそのまま出すのだ。
func ExecuteRender(cfg *config.Config) error {
	appCtx := builder.NewReadOnlyAppContext(cfg)

	raw, err := os.ReadFile(cfg.Options.ChapterFile)
	if err != nil {
		return fmt.Errorf("章HTML '%s' の読み込みに失敗したのだ: %w", cfg.Options.ChapterFile, err)
	}
	html := string(raw)

	rec, err := appCtx.Store.Read(cfg.Options.Book, cfg.Options.Chapter)
	if err != nil {
		return fmt.Errorf("記録の読み込みに失敗したのだ: %w", err)
	}

	output := html
	if rec != nil {
		if images := appCtx.Store.CachedImages(cfg.Options.Book, cfg.Options.Chapter, len(rec.Images)); images != nil {
			output, err = injector.Inject(html, images, rec.SceneLocations, rec.AnchorTexts)
			if err != nil {
				return fmt.Errorf("挿絵の差し込みに失敗したのだ: %w", err)
			}
		} else {
			slog.Warn("有効なキャッシュがないので原文のまま出力するのだ", "book", cfg.Options.Book, "chapter", cfg.Options.Chapter)
		}
	}

	if cfg.Options.OutputFile == "" {
		fmt.Print(output)
		return nil
	}
	if err := os.WriteFile(cfg.Options.OutputFile, []byte(output), 0o644); err != nil {
		return fmt.Errorf("出力先 '%s' への書き込みに失敗したのだ: %w", cfg.Options.OutputFile, err)
	}
	slog.Info("差し込み済みHTMLを保存したのだ", "path", cfg.Options.OutputFile)
	return nil
}

// generateChapter は章HTMLを読み込み、本文を抽出してランナーに渡す共通処理なのだ。
func generateChapter(ctx context.Context, appCtx *builder.AppContext, chapterFile string, chapterIndex int, chapterTitle string) ([]string, error) {
	raw, err := os.ReadFile(chapterFile)
	if err != nil {
		return nil, fmt.Errorf("章HTML '%s' の読み込みに失敗したのだ: %w", chapterFile, err)
	}

	text, err := injector.ExtractText(string(raw))
	if err != nil {
		return nil, fmt.Errorf("本文の抽出に失敗したのだ: %w", err)
	}

	style := appCtx.Options.Style
	if style == "" {
		style = appCtx.Config.StyleDirective
	}

	return appCtx.Runner.Run(ctx, runner.GenerateRequest{
		Book:         appCtx.Options.Book,
		Chapter:      chapterIndex,
		ChapterText:  text,
		BookTitle:    appCtx.Options.BookTitle,
		ChapterTitle: chapterTitle,
		NumImages:    appCtx.Options.NumImages,
		Style:        style,
		Force:        appCtx.Options.Force,
	})
}

type chapterFile struct {
	path  string
	index int
}

var chapterIndexRe = regexp.MustCompile(`(\d+)`)

// chapterFiles はブックフォルダ直下の章HTMLを集めて、ファイル名中の番号順に並べるのだ。
func chapterFiles(bookDir string) ([]chapterFile, error) {
	matches, err := filepath.Glob(filepath.Join(bookDir, "chapter_*.html"))
	if err != nil {
		return nil, err
	}

	files := make([]chapterFile, 0, len(matches))
	for _, m := range matches {
		digits := chapterIndexRe.FindString(filepath.Base(m))
		idx, err := strconv.Atoi(digits)
		if err != nil {
			slog.Warn("章番号が読み取れないファイルをスキップするのだ", "file", m)
			continue
		}
		files = append(files, chapterFile{path: m, index: idx})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}
