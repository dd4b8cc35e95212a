package copying

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRoot(t *testing.T) {
	root := t.TempDir()
	for _, label := range []string{"", "/"} {
		got, err := Resolve(root, label, "a.mp3")
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", label, err)
		}
		if want := filepath.Join(root, "a.mp3"); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestResolveNested(t *testing.T) {
	root := t.TempDir()

	got, err := Resolve(root, "Rock", "a.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "Rock", "a.mp3"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	info, err := os.Stat(filepath.Join(root, "Rock"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected Rock directory to exist, err=%v", err)
	}

	// Resolving again must not fail on the existing directory.
	if _, err := Resolve(root, "Rock", "b.mp3"); err != nil {
		t.Errorf("second resolve failed: %v", err)
	}

	got, err = Resolve(root, "Rock/80s", "c.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "Rock", "80s", "c.mp3"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveKeepsLabelsVerbatim(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "AC:DC?", "a.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "AC:DC?", "a.mp3"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveFATSafe(t *testing.T) {
	root := t.TempDir()
	r := NewPathResolver(true, true, nil)

	got, err := r.Resolve(root, "AC:DC/Björk?", "Track*1.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "AC - DC", "Bjork", "Track1.mp3"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveOutsideRootIsAllowed(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "usb")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(root, "../outside", "a.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(base, "outside", "a.mp3"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !escapesRoot(root, filepath.Dir(got)) {
		t.Error("expected path to be flagged as escaping the root")
	}
}

func TestSanitizeFATFilename(t *testing.T) {
	cases := map[string]string{
		"plain":           "plain",
		`a<b>c|d"e`:       "a(b)c-d'e",
		"trailing dots..": "trailing dots",
		"..":              "_",
		"":                "",
	}
	for in, want := range cases {
		if got := sanitizeFATFilename(in); got != want {
			t.Errorf("sanitizeFATFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
