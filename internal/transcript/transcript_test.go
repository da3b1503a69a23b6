package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromReaderPlainText(t *testing.T) {
	in := "first line\n\n  second line  \nthird line\n"
	tr, err := FromReader(strings.NewReader(in), "inline")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	want := []string{"first line", "second line", "third line"}
	if len(tr.Lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(tr.Lines), len(want))
	}
	for i, w := range want {
		if tr.Lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, tr.Lines[i], w)
		}
	}
}

func TestFromReaderJSONL(t *testing.T) {
	in := `{"content":"ran the tests"}
{"text":"all passing"}
{"message":"done"}
{"role":"assistant","other":42}
not json at all`
	tr, err := FromReader(strings.NewReader(in), "inline")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	want := []string{
		"ran the tests",
		"all passing",
		"done",
		`{"role":"assistant","other":42}`, // no recognized text field: kept verbatim
		"not json at all",
	}
	for i, w := range want {
		if tr.Lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, tr.Lines[i], w)
		}
	}
}

func TestFromReaderEmpty(t *testing.T) {
	_, err := FromReader(strings.NewReader("\n\n  \n"), "inline")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty input err = %v, want ErrUnavailable", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing file err = %v, want ErrUnavailable", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.txt")
	if err := os.WriteFile(path, []byte("hello\nworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tr.Source != path {
		t.Errorf("Source = %q, want %q", tr.Source, path)
	}
	if got := tr.Text(); got != "hello\nworld" {
		t.Errorf("Text() = %q", got)
	}
}
