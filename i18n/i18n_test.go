package i18n

import "testing"

func TestTPassthroughBeforeInit(t *testing.T) {
	locale = nil
	if got := T("Translate a document"); got != "Translate a document" {
		t.Errorf("T before Init = %q", got)
	}
	if got := N("one file", "many files", 1); got != "one file" {
		t.Errorf("N(1) before Init = %q", got)
	}
	if got := N("one file", "many files", 3); got != "many files" {
		t.Errorf("N(3) before Init = %q", got)
	}
}

func TestInitFrench(t *testing.T) {
	Init("fr")
	defer func() { locale = nil }()

	if got := T("Translate a document"); got != "Traduire un document" {
		t.Errorf("T = %q", got)
	}
	// Untranslated strings pass through unchanged.
	if got := T("absolutely untranslated string"); got != "absolutely untranslated string" {
		t.Errorf("passthrough = %q", got)
	}

	singular := "%d batch was skipped and kept its original text."
	plural := "%d batches were skipped and kept their original text."
	if got := N(singular, plural, 1); got != "%d lot a été ignoré et a conservé son texte d'origine." {
		t.Errorf("N(1) = %q", got)
	}
	if got := N(singular, plural, 2); got != "%d lots ont été ignorés et ont conservé leur texte d'origine." {
		t.Errorf("N(2) = %q", got)
	}
}

func TestInitUnknownLanguageFallsThrough(t *testing.T) {
	Init("xx")
	defer func() { locale = nil }()

	if got := T("Translate a document"); got != "Translate a document" {
		t.Errorf("T for unknown locale = %q", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "fr_FR.UTF-8")
	if got := detectLanguage(); got != "fr_FR" {
		t.Errorf("detectLanguage = %q, want fr_FR", got)
	}

	t.Setenv("LANGUAGE", "de:fr")
	if got := detectLanguage(); got != "de" {
		t.Errorf("detectLanguage = %q, want de", got)
	}

	t.Setenv("LANGUAGE", "")
	t.Setenv("LANG", "C")
	if got := detectLanguage(); got != "en" {
		t.Errorf("detectLanguage = %q, want en fallback", got)
	}
}
