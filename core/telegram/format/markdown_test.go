package format

import "testing"

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("Agua*Plus_1 [oferta]", MarkdownV1)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	want := `Agua\*Plus\_1 \[oferta]`
	if got != want {
		t.Fatalf("EscapeMarkdown = %q, want %q", got, want)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("precio: $1.50 (promo)", MarkdownV2)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	want := `precio: $1\.50 \(promo\)`
	if got != want {
		t.Fatalf("EscapeMarkdown = %q, want %q", got, want)
	}
}

func TestEscapeMarkdownPlainTextUnchanged(t *testing.T) {
	got, err := EscapeMarkdown("Bidón 20L", MarkdownV1)
	if err != nil || got != "Bidón 20L" {
		t.Fatalf("EscapeMarkdown = (%q, %v)", got, err)
	}
}

func TestEscapeMarkdownUnknownVersion(t *testing.T) {
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}
