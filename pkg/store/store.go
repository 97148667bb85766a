// Package store はブックごとの挿絵生成レコードを永続化します。
//
// 外部契約は「ブックごとに1つのJSONドキュメント、章インデックスの文字列キー、
// 2スペースインデント」。書き込みは全ドキュメントの読み出し・1キー変更・
// 一時ファイル経由のアトミックな差し替えで行い、ブック単位のロックで
// read-modify-write の競合を閉じるのだ。
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/teristam/reader3/pkg/domain"
)

// MetadataFileName はブックディレクトリ直下のレコードファイル名です。
const MetadataFileName = "generated_images.json"

const (
	docCacheTTL     = 30 * time.Minute
	docCacheCleanup = 1 * time.Hour
)

// TransitionError は状態遷移グラフに反する書き込みを表します。
// completed の上書きは Invalidate を経た明示的な再生成だけが正道なのだ。
type TransitionError struct {
	Prev, Next domain.Status
}

func (e *TransitionError) Error() string {
	prev := string(e.Prev)
	if prev == "" {
		prev = "absent"
	}
	return fmt.Sprintf("store: invalid status transition %s -> %s", prev, e.Next)
}

// document はブック1冊ぶんのレコード集合です。未知のキーや旧形式の値を
// 保全するため、値は RawMessage のまま持ち運びます。
type document map[string]json.RawMessage

// Store は複数ブックのレコードファイルを排他制御つきで読み書きします。
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// 読み取り専用経路のためのTTLキャッシュ。書き込みのたびに差し替える。
	docs *gocache.Cache
}

// New はブックディレクトリ群のルートを指すストアを返します。
func New(root string) *Store {
	return &Store{
		root:  root,
		locks: make(map[string]*sync.Mutex),
		docs:  gocache.New(docCacheTTL, docCacheCleanup),
	}
}

// BookDir はブックIDに対応するディレクトリの絶対・相対パスを返すのだ。
func (s *Store) BookDir(book string) string {
	return filepath.Join(s.root, book)
}

// Read は章レコードを返します。未存在は (nil, nil) です。
func (s *Store) Read(book string, chapter int) (*domain.ChapterRecord, error) {
	doc, err := s.loadDocCached(book)
	if err != nil {
		return nil, err
	}
	raw, ok := doc[strconv.Itoa(chapter)]
	if !ok {
		return nil, nil
	}
	return decodeRecord(raw, book, chapter), nil
}

// Write は1章ぶんのレコードを差し替えます。既存レコードとの状態遷移を検証し、
// グラフに反する書き込みは TransitionError で拒否するのだ。
func (s *Store) Write(book string, chapter int, rec *domain.ChapterRecord) error {
	lock := s.bookLock(book)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.loadDocFromDisk(book)
	if err != nil {
		return err
	}

	var prev domain.Status
	if raw, ok := doc[strconv.Itoa(chapter)]; ok {
		if existing := decodeRecord(raw, book, chapter); existing != nil {
			prev = existing.Status
		}
	}
	if !domain.CanTransition(prev, rec.Status) {
		return &TransitionError{Prev: prev, Next: rec.Status}
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: レコードの marshal に失敗しました: %w", err)
	}
	doc[strconv.Itoa(chapter)] = raw

	return s.saveDoc(book, doc)
}

// Invalidate は章レコードが参照する画像ファイルをすべて削除し、
// レコード自体もドキュメントから取り除きます。未存在なら何もしません。
func (s *Store) Invalidate(book string, chapter int) error {
	lock := s.bookLock(book)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.loadDocFromDisk(book)
	if err != nil {
		return err
	}

	key := strconv.Itoa(chapter)
	raw, ok := doc[key]
	if !ok {
		return nil
	}

	if rec := decodeRecord(raw, book, chapter); rec != nil {
		for _, img := range rec.Images {
			full := filepath.Join(s.BookDir(book), filepath.FromSlash(img))
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				slog.Warn("アセットファイルの削除に失敗しました", "book", book, "path", full, "error", err)
			}
		}
	}

	delete(doc, key)
	return s.saveDoc(book, doc)
}

// CachedImages はキャッシュヒット判定つきの画像パス取得です。
// status が completed で、記録された枚数・実在するファイル数・要求枚数が
// すべて一致するときだけパスのコピーを返し、それ以外は nil（ミス）です。
// ディスク上の不整合は黙ってミス扱いにするのだ。
func (s *Store) CachedImages(book string, chapter, want int) []string {
	rec, err := s.Read(book, chapter)
	if err != nil || rec == nil {
		return nil
	}
	if rec.Status != domain.StatusCompleted || len(rec.Images) != want {
		return nil
	}

	for _, img := range rec.Images {
		full := filepath.Join(s.BookDir(book), filepath.FromSlash(img))
		if info, err := os.Stat(full); err != nil || info.IsDir() {
			slog.Warn("レコードが参照するファイルが見つからないためキャッシュミス扱いにします",
				"book", book, "chapter", chapter, "path", img)
			return nil
		}
	}

	out := make([]string, len(rec.Images))
	copy(out, rec.Images)
	return out
}

// Chapters はブック内の全章レコードを返します。status コマンドの材料なのだ。
func (s *Store) Chapters(book string) (map[int]*domain.ChapterRecord, error) {
	doc, err := s.loadDocCached(book)
	if err != nil {
		return nil, err
	}

	out := make(map[int]*domain.ChapterRecord, len(doc))
	for key, raw := range doc {
		idx, err := strconv.Atoi(key)
		if err != nil {
			// 章インデックス以外のキーは前方互換のため黙って無視する
			continue
		}
		if rec := decodeRecord(raw, book, idx); rec != nil {
			out[idx] = rec
		}
	}
	return out, nil
}

// decodeRecord は値を章レコードへ解釈します。旧形式（裸のパス配列）は
// completed 相当として読み替え、壊れた値は nil（ミス）に落とすのだ。
func decodeRecord(raw json.RawMessage, book string, chapter int) *domain.ChapterRecord {
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return &domain.ChapterRecord{
			Images:            legacy,
			Status:            domain.StatusCompleted,
			CurrentImageCount: len(legacy),
			SchemaVersion:     1,
		}
	}

	var rec domain.ChapterRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		slog.Warn("章レコードの解釈に失敗したためキャッシュミス扱いにします",
			"book", book, "chapter", chapter, "error", err)
		return nil
	}
	if rec.Status == "" && len(rec.Images) > 0 {
		// status 導入前の envelope 形式
		rec.Status = domain.StatusCompleted
	}
	return &rec
}

func (s *Store) bookLock(book string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[book]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[book] = lock
	}
	return lock
}

func (s *Store) loadDocCached(book string) (document, error) {
	if v, ok := s.docs.Get(book); ok {
		return v.(document), nil
	}
	doc, err := s.loadDocFromDisk(book)
	if err != nil {
		return nil, err
	}
	s.docs.SetDefault(book, doc)
	return doc, nil
}

func (s *Store) loadDocFromDisk(book string) (document, error) {
	data, err := os.ReadFile(filepath.Join(s.BookDir(book), MetadataFileName))
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: レコードファイルの読み込みに失敗しました: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: レコードファイルの解釈に失敗しました: %w", err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// saveDoc はドキュメント全体を一時ファイルへ書き出し、rename で差し替えます。
// 部分書き込みが観測されることはないのだ。呼び出し側がブックロックを握っていること。
func (s *Store) saveDoc(book string, doc document) error {
	dir := s.BookDir(book)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: ブックディレクトリの作成に失敗しました: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: ドキュメントの marshal に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".generated_images-*.json")
	if err != nil {
		return fmt.Errorf("store: 一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: 一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: 一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, MetadataFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: レコードファイルの差し替えに失敗しました: %w", err)
	}

	s.docs.SetDefault(book, doc)
	return nil
}
