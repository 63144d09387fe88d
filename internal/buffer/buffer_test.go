package buffer_test

import (
	"testing"

	"github.com/hzeller/bare-lsp/internal/buffer"
)

func content(t *testing.T, b *buffer.EditTextBuffer) string {
	t.Helper()
	var got string
	b.RequestContent(func(c []byte) { got = string(c) })
	return got
}

func line(t *testing.T, b *buffer.EditTextBuffer, i int) string {
	t.Helper()
	var got string
	b.RequestLine(i, func(c []byte) { got = string(c) })
	return got
}

func TestRecreateEmptyFile(t *testing.T) {
	b := buffer.NewEditTextBuffer("")
	if got := content(t, b); got != "" {
		t.Fatalf("content = %q, want empty", got)
	}
	if b.Lines() != 0 {
		t.Fatalf("Lines() = %d, want 0", b.Lines())
	}
}

func TestRecreateFileWithAndWithoutNewlineAtEOF(t *testing.T) {
	withNL := buffer.NewEditTextBuffer("foo\nbar\n")
	if got := content(t, withNL); got != "foo\nbar\n" {
		t.Fatalf("content = %q", got)
	}
	if withNL.Lines() != 2 {
		t.Fatalf("Lines() = %d, want 2", withNL.Lines())
	}

	withoutNL := buffer.NewEditTextBuffer("foo\nbar")
	if got := content(t, withoutNL); got != "foo\nbar" {
		t.Fatalf("content = %q", got)
	}
	if withoutNL.Lines() != 2 {
		t.Fatalf("Lines() = %d, want 2", withoutNL.Lines())
	}
	if got := line(t, withoutNL, 1); got != "bar" {
		t.Fatalf("line 1 = %q, want %q (no trailing newline)", got, "bar")
	}
}

func TestRecreateCRLFFiles(t *testing.T) {
	b := buffer.NewEditTextBuffer("foo\r\nbar\r\n")
	if got := content(t, b); got != "foo\r\nbar\r\n" {
		t.Fatalf("content = %q, want CRLF preserved", got)
	}
	if got := line(t, b, 0); got != "foo\r\n" {
		t.Fatalf("line 0 = %q", got)
	}
}

func TestChangeApplyFullContent(t *testing.T) {
	b := buffer.NewEditTextBuffer("old content\n")
	ok := b.ApplyChange(buffer.ChangeEvent{Text: "new content\nsecond line\n"})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "new content\nsecond line\n" {
		t.Fatalf("content = %q", got)
	}
	if b.EditCount() != 1 {
		t.Fatalf("EditCount() = %d, want 1", b.EditCount())
	}
}

func TestChangeApplySingleLineInsert(t *testing.T) {
	b := buffer.NewEditTextBuffer("Hello World\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 5},
			End:   buffer.Position{Line: 0, Character: 5},
		},
		Text: ",",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "Hello, World\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplySingleLineInsertFromEmptyFile(t *testing.T) {
	b := buffer.NewEditTextBuffer("")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 0},
			End:   buffer.Position{Line: 0, Character: 0},
		},
		Text: "Hello",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "Hello" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplySingleLineReplace(t *testing.T) {
	b := buffer.NewEditTextBuffer("Hello World\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 6},
			End:   buffer.Position{Line: 0, Character: 11},
		},
		Text: "Mars",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "Hello Mars\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplySingleLineReplaceNotFirstLine(t *testing.T) {
	b := buffer.NewEditTextBuffer("one\ntwo\nthree\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 1, Character: 0},
			End:   buffer.Position{Line: 1, Character: 3},
		},
		Text: "TWO",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "one\nTWO\nthree\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplySingleLineErase(t *testing.T) {
	b := buffer.NewEditTextBuffer("Hello, World\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 5},
			End:   buffer.Position{Line: 0, Character: 6},
		},
		Text: "",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "Hello World\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplySingleLineReplaceCorrectOverlongEnd(t *testing.T) {
	b := buffer.NewEditTextBuffer("Hello\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 2},
			End:   buffer.Position{Line: 0, Character: 1000},
		},
		Text: "y",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "Hey\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplyMultiLineEraseBetweenLines(t *testing.T) {
	b := buffer.NewEditTextBuffer("one\ntwo\nthree\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 3},
			End:   buffer.Position{Line: 2, Character: 0},
		},
		Text: "",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "onethree\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplyMultiLineInsertMoreLines(t *testing.T) {
	b := buffer.NewEditTextBuffer("one\ntwo\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 3},
			End:   buffer.Position{Line: 0, Character: 3},
		},
		Text: "\nONE-AND-A-HALF",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "one\nONE-AND-A-HALF\ntwo\n" {
		t.Fatalf("content = %q", got)
	}
	if b.Lines() != 3 {
		t.Fatalf("Lines() = %d, want 3", b.Lines())
	}
}

func TestChangeApplyMultiLineInsertFromStart(t *testing.T) {
	b := buffer.NewEditTextBuffer("")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 0},
			End:   buffer.Position{Line: 0, Character: 0},
		},
		Text: "one\ntwo\n",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "one\ntwo\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestChangeApplyMultiLineRemoveLines(t *testing.T) {
	b := buffer.NewEditTextBuffer("one\ntwo\nthree\nfour\n")
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 1, Character: 0},
			End:   buffer.Position{Line: 3, Character: 0},
		},
		Text: "",
	})
	if !ok {
		t.Fatalf("ApplyChange returned false")
	}
	if got := content(t, b); got != "one\nfour\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestEditCountAdvancesEvenOnFailedEdit(t *testing.T) {
	b := buffer.NewEditTextBuffer("short\n")
	before := b.EditCount()
	ok := b.ApplyChange(buffer.ChangeEvent{
		Range: &buffer.Range{
			Start: buffer.Position{Line: 0, Character: 100},
			End:   buffer.Position{Line: 0, Character: 200},
		},
		Text: "x",
	})
	if ok {
		t.Fatalf("ApplyChange unexpectedly succeeded on an out-of-range start")
	}
	if b.EditCount() != before+1 {
		t.Fatalf("EditCount() = %d, want %d (counter advances regardless of outcome)", b.EditCount(), before+1)
	}
	if got := content(t, b); got != "short\n" {
		t.Fatalf("content changed after a failed edit: %q", got)
	}
}

func TestApplyChangesAPpliesInOrder(t *testing.T) {
	b := buffer.NewEditTextBuffer("abc\n")
	b.ApplyChanges([]buffer.ChangeEvent{
		{Range: &buffer.Range{Start: buffer.Position{Line: 0, Character: 1}, End: buffer.Position{Line: 0, Character: 1}}, Text: "X"},
		{Range: &buffer.Range{Start: buffer.Position{Line: 0, Character: 0}, End: buffer.Position{Line: 0, Character: 0}}, Text: "Y"},
	})
	if got := content(t, b); got != "YaXbc\n" {
		t.Fatalf("content = %q", got)
	}
	if b.EditCount() != 2 {
		t.Fatalf("EditCount() = %d, want 2", b.EditCount())
	}
}
