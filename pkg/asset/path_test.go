package asset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"英数字と空白", "Chapter 1", "Chapter_1"},
		{"複数語", "The Beginning", "The_Beginning"},
		{"句読点は落ちること", "Chapter: The End?", "Chapter_The_End"},
		{"アポストロフィ", "It's a test!", "Its_a_test"},
		{"連続空白の圧縮", "Too   Many    Spaces", "Too_Many_Spaces"},
		{"前後アンダースコアの除去", "__test__", "test"},
		{"ドットだけの装飾", "...test...", "test"},
		{"空文字はフォールバック", "", "chapter"},
		{"記号だけもフォールバック", "!!!", "chapter"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SanitizeTitle(c.in, 0); got != c.want {
				t.Errorf("SanitizeTitle(%q): 期待値 %q, 実際の値 %q", c.in, c.want, got)
			}
		})
	}

	t.Run("上限長で切り詰められること", func(t *testing.T) {
		got := SanitizeTitle(strings.Repeat("A", 100), 50)
		if len(got) != 50 {
			t.Errorf("長さ: 期待値 50, 実際の値 %d", len(got))
		}
		if got != strings.Repeat("A", 50) {
			t.Errorf("内容が不正です: %q", got)
		}
	})
}

func TestImageRelPath(t *testing.T) {
	t.Run("タイトルつきの決定論的パス", func(t *testing.T) {
		got := ImageRelPath(4, "The Storm!", 2)
		want := "images/generated_ch4_The_Storm_scene2.png"
		if got != want {
			t.Errorf("期待値 %q, 実際の値 %q", want, got)
		}
		// 同じ入力からは常に同じパスが得られること
		if again := ImageRelPath(4, "The Storm!", 2); again != got {
			t.Error("パスが決定論的ではありません")
		}
	})

	t.Run("タイトルなしの形式", func(t *testing.T) {
		got := ImageRelPath(0, "", 1)
		if got != "images/generated_ch0_scene1.png" {
			t.Errorf("実際の値 %q", got)
		}
	})
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	lib := NewLibrary(dir)

	rel, err := lib.Save("images/generated_ch0_scene1.png", []byte("payload"))
	if err != nil {
		t.Fatalf("保存に失敗しました: %v", err)
	}
	if rel != "images/generated_ch0_scene1.png" {
		t.Errorf("返却パス: %q", rel)
	}

	data, err := os.ReadFile(filepath.Join(dir, "images", "generated_ch0_scene1.png"))
	if err != nil {
		t.Fatalf("保存ファイルが読めません: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("内容が一致しません: %q", data)
	}

	if !lib.Exists(rel) {
		t.Error("Exists が保存済みファイルを見つけられません")
	}
	if lib.Exists("images/missing.png") {
		t.Error("Exists が存在しないファイルを実在と報告しました")
	}
}
