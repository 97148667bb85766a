package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teristam/reader3/pkg/domain"
	"github.com/teristam/reader3/pkg/store"
)

// --- テスト用のフェイクなのだ ---

type fakeExtractor struct {
	scenes []domain.SceneDescriptor
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ int) ([]domain.SceneDescriptor, error) {
	f.calls++
	return f.scenes, f.err
}

type fakeSynthesizer struct {
	payload []byte
	failAt  int // この呼び出し回数（1始まり）で失敗する。0なら常に成功
	failErr error
	calls   int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _, _, _ string) ([]byte, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return nil, f.failErr
	}
	return f.payload, nil
}

func threeScenes() []domain.SceneDescriptor {
	return []domain.SceneDescriptor{
		{SceneNumber: 1, Summary: "嵐の中の出航", InsertAfterText: "Call me Ishmael.", LocationPercent: 25},
		{SceneNumber: 2, Summary: "甲板での対峙", InsertAfterText: "", LocationPercent: 50},
		{SceneNumber: 3, Summary: "夜の静けさ", InsertAfterText: "It was a quiet night.", LocationPercent: 75},
	}
}

func newTestRunner(t *testing.T, ex *fakeExtractor, sy *fakeSynthesizer) (*ChapterIllustrationRunner, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir())
	return NewChapterIllustrationRunner(ex, sy, st, 0), st
}

func payload() []byte {
	return []byte(strings.Repeat("x", 2048))
}

func TestRun_正常系で画像パスと完了記録が得られる(t *testing.T) {
	ex := &fakeExtractor{scenes: threeScenes()}
	sy := &fakeSynthesizer{payload: payload()}
	r, st := newTestRunner(t, ex, sy)

	req := GenerateRequest{
		Book:         "moby_dick_data",
		Chapter:      3,
		ChapterText:  "Call me Ishmael. ...",
		BookTitle:    "Moby Dick",
		ChapterTitle: "Loomings",
		NumImages:    3,
	}
	paths, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run が失敗したのだ: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("画像パスは3件のはずなのだ: %v", paths)
	}
	for _, p := range paths {
		full := filepath.Join(st.BookDir(req.Book), filepath.FromSlash(p))
		if _, err := os.Stat(full); err != nil {
			t.Errorf("画像ファイルが存在しないのだ: %s: %v", p, err)
		}
	}

	rec, err := st.Read(req.Book, req.Chapter)
	if err != nil || rec == nil {
		t.Fatalf("記録が読めないのだ: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Errorf("ステータスは completed のはずなのだ: %s", rec.Status)
	}
	if rec.CurrentImageCount != 3 {
		t.Errorf("枚数カウントが一致しないのだ: %d", rec.CurrentImageCount)
	}
	if len(rec.SceneLocations) != 3 || rec.SceneLocations[1] != 50 {
		t.Errorf("位置情報が記録されていないのだ: %v", rec.SceneLocations)
	}
	if rec.AnchorTexts[1] != "" {
		t.Errorf("アンカーなしの場面は空文字列で記録するのだ: %q", rec.AnchorTexts[1])
	}
}

func TestRun_2回目はキャッシュを使い外部APIを呼ばない(t *testing.T) {
	ex := &fakeExtractor{scenes: threeScenes()}
	sy := &fakeSynthesizer{payload: payload()}
	r, _ := newTestRunner(t, ex, sy)

	req := GenerateRequest{Book: "b", Chapter: 0, ChapterText: "text", NumImages: 3}
	first, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("1回目の Run が失敗したのだ: %v", err)
	}

	second, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("2回目の Run が失敗したのだ: %v", err)
	}
	if ex.calls != 1 || sy.calls != 3 {
		t.Errorf("2回目は外部APIを呼んではいけないのだ: extract=%d synth=%d", ex.calls, sy.calls)
	}
	if len(second) != len(first) {
		t.Errorf("キャッシュの結果が一致しないのだ: %v vs %v", first, second)
	}
}

func TestRun_枚数不一致なら暗黙の再生成になる(t *testing.T) {
	ex := &fakeExtractor{scenes: threeScenes()}
	sy := &fakeSynthesizer{payload: payload()}
	r, st := newTestRunner(t, ex, sy)

	req := GenerateRequest{Book: "b", Chapter: 1, ChapterText: "text", NumImages: 3}
	if _, err := r.Run(context.Background(), req); err != nil {
		t.Fatalf("1回目の Run が失敗したのだ: %v", err)
	}

	// 枚数を変えて再実行すると、古い記録は破棄されて作り直されるのだ
	ex.scenes = append(threeScenes(), domain.SceneDescriptor{SceneNumber: 4, Summary: "追補", LocationPercent: 90})
	req.NumImages = 4
	paths, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("再生成が失敗したのだ: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("4枚に作り直されるはずなのだ: %v", paths)
	}
	if ex.calls != 2 {
		t.Errorf("抽出は2回呼ばれるはずなのだ: %d", ex.calls)
	}
	rec, _ := st.Read(req.Book, req.Chapter)
	if rec == nil || len(rec.Images) != 4 {
		t.Errorf("記録が4枚に更新されていないのだ: %+v", rec)
	}
}

func TestRun_途中で失敗したら中断してエラー記録を残す(t *testing.T) {
	ex := &fakeExtractor{scenes: threeScenes()}
	sy := &fakeSynthesizer{payload: payload(), failAt: 2, failErr: domain.ErrSafetyBlocked}
	r, st := newTestRunner(t, ex, sy)

	req := GenerateRequest{Book: "b", Chapter: 2, ChapterText: "text", NumImages: 3}
	_, err := r.Run(context.Background(), req)
	if err == nil {
		t.Fatal("エラーが返るはずなのだ")
	}
	if sy.calls != 2 {
		t.Errorf("失敗後の場面は試行してはいけないのだ: calls=%d", sy.calls)
	}

	rec, _ := st.Read(req.Book, req.Chapter)
	if rec == nil || rec.Status != domain.StatusError {
		t.Fatalf("error 記録が残るはずなのだ: %+v", rec)
	}
	if rec.Error != "blocked by safety filters" {
		t.Errorf("安全フィルタのメッセージになるはずなのだ: %q", rec.Error)
	}
	// 1枚目の成果はエラー記録にも残るのだ（次回の掃除対象にするため）
	if rec.CurrentImageCount != 1 || len(rec.Images) != 1 {
		t.Errorf("成功済みの1枚が記録されていないのだ: %+v", rec)
	}
}

func TestRun_抽出失敗はエラー記録になる(t *testing.T) {
	ex := &fakeExtractor{err: &domain.ServiceError{Op: "scene extraction", Err: errors.New("boom")}}
	sy := &fakeSynthesizer{payload: payload()}
	r, st := newTestRunner(t, ex, sy)

	req := GenerateRequest{Book: "b", Chapter: 5, ChapterText: "text", NumImages: 3}
	if _, err := r.Run(context.Background(), req); err == nil {
		t.Fatal("エラーが返るはずなのだ")
	}
	if sy.calls != 0 {
		t.Errorf("抽出に失敗したら画像生成は呼ばないのだ: %d", sy.calls)
	}
	rec, _ := st.Read(req.Book, req.Chapter)
	if rec == nil || rec.Status != domain.StatusError {
		t.Fatalf("error 記録が残るはずなのだ: %+v", rec)
	}
	if !strings.Contains(rec.Error, "scene extraction failed") {
		t.Errorf("抽出失敗のメッセージになるはずなのだ: %q", rec.Error)
	}
}

func TestRun_本文が空なら何もしない(t *testing.T) {
	ex := &fakeExtractor{scenes: threeScenes()}
	sy := &fakeSynthesizer{payload: payload()}
	r, st := newTestRunner(t, ex, sy)

	paths, err := r.Run(context.Background(), GenerateRequest{Book: "b", Chapter: 9, ChapterText: " \n\t ", NumImages: 3})
	if err != nil {
		t.Fatalf("空の章でエラーになってはいけないのだ: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("空の章は空の結果を返すのだ: %v", paths)
	}
	if ex.calls != 0 || sy.calls != 0 {
		t.Errorf("空の章では外部APIを呼ばないのだ: extract=%d synth=%d", ex.calls, sy.calls)
	}
	if rec, _ := st.Read("b", 9); rec != nil {
		t.Errorf("空の章には記録を作らないのだ: %+v", rec)
	}
}

func TestUserMessage_エラー分類(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"安全フィルタ", domain.ErrSafetyBlocked, "blocked by safety filters"},
		{"画像なし", domain.ErrNoImageData, "no image data received"},
		{"サイズ不足", &domain.PayloadSizeError{Size: 512, Min: 1000}, "image too small (512 bytes)"},
		{"形式不正", &domain.PayloadFormatError{Detected: "text/plain"}, "invalid image data received"},
		{"その他", errors.New("boom"), "generation error: boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := userMessage(tc.err); got != tc.want {
				t.Errorf("userMessage(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
