package slug

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestGenerate_Examples(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Multiple---separators___here", "multiple-separators-here"},
		{"Заголовок", "zagolovok"},
		{`Заголовок "Пустой слаг"`, "zagolovok-pustoj-slag"},
		{"Текст заметки", "tekst-zametki"},
		{"Ещё заголовок", "esche-zagolovok"},
		{"Crème brûlée", "creme-brulee"},
		{"C++ & Go: 2 languages", "c-go-2-languages"},
		{"Щи да каша", "schi-da-kasha"},
		{"42", "42"},
		{"", ""},
		{"!!!", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Generate(tc.title); got != tc.want {
			t.Fatalf("Generate(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func testGenerate_Properties(t *rapid.T) {
	title := rapid.String().Draw(t, "title")
	got := Generate(title)

	// Deterministic.
	if again := Generate(title); again != got {
		t.Fatalf("Generate not deterministic for %q: %q vs %q", title, got, again)
	}

	// Output alphabet: lowercase ASCII letters, digits, single hyphens,
	// never at the edges.
	if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
		t.Fatalf("slug %q has hyphen at edge (title %q)", got, title)
	}
	if strings.Contains(got, "--") {
		t.Fatalf("slug %q has consecutive hyphens (title %q)", got, title)
	}
	for _, r := range got {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if !ok {
			t.Fatalf("slug %q contains %q outside the slug alphabet (title %q)", got, r, title)
		}
	}

	// Idempotent: a slug slugifies to itself.
	if Generate(got) != got {
		t.Fatalf("Generate not idempotent: %q -> %q", got, Generate(got))
	}
}

func TestGenerate_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testGenerate_Properties)
}

func TestGenerate_CyrillicAlwaysConverts(t *testing.T) {
	t.Parallel()

	// Every mapped Cyrillic letter must land in the ASCII alphabet.
	for r, latin := range cyrillic {
		got := Generate(string(r))
		if got != latin {
			t.Fatalf("Generate(%q) = %q, want %q", r, got, latin)
		}
	}
}
