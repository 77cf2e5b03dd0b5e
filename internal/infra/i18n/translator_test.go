//go:build !integration

package i18n

import (
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	// 1. Arrange
	contentBytes := []byte("greeting: Habari\nwelcome_user: Karibu %s")
	translator, err := newTranslatorFromBytes(contentBytes)
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	// 2. Act & 3. Assert
	t.Run("should translate a simple key", func(t *testing.T) {
		got := translator.T("greeting")
		want := "Habari"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		got := translator.T("nonexistent_key")
		want := "nonexistent_key"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
		if translator.Has("nonexistent_key") {
			t.Error("expected Has to be false for a missing key")
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		got := translator.T("welcome_user", "Amina")
		want := "Karibu Amina"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})
}

func TestNewTranslator(t *testing.T) {
	t.Run("should load a locale from any fs", func(t *testing.T) {
		fsys := fstest.MapFS{"locales/sw.yaml": {Data: []byte("farewell: Kwaheri")}}
		tr, err := NewTranslator(fsys, "sw")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := tr.T("farewell"); got != "Kwaheri" {
			t.Errorf("wanted 'Kwaheri', got '%s'", got)
		}
	})

	t.Run("should fail for a missing locale", func(t *testing.T) {
		if _, err := NewTranslator(fstest.MapFS{}, "xx"); err == nil {
			t.Fatal("expected an error, but got nil")
		}
	})

	t.Run("should ship an embedded English locale", func(t *testing.T) {
		tr, err := NewTranslator(LocalesFS, "en")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		for _, key := range []string{"catalog.title", "payment.failed.timeout", "support.stk_initiated"} {
			if !tr.Has(key) {
				t.Errorf("expected embedded locale to define %q", key)
			}
		}
	})
}
