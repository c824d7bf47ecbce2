package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  Alepa   Vihdintie ")
	if got != "alepa vihdintie" {
		t.Errorf("expected 'alepa vihdintie', got %q", got)
	}
}

func TestFoldStripsDiacritics(t *testing.T) {
	if got := Fold("Etelä-Haaga"); got != "etela-haaga" {
		t.Errorf("expected 'etela-haaga', got %q", got)
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	got := Tokenize("Alepa, Aleksanterinkatu 9, Helsinki")
	want := []string{"alepa", "aleksanterinkatu", "helsinki"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUniqueNonEmpty(t *testing.T) {
	got := UniqueNonEmpty([]string{" 550 ", "", "550", "18"})
	want := []string{"550", "18"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
