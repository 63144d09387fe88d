// Package buffer holds an in-memory mirror of every document a client has
// opened and applies the incremental LSP change events sent for it.
package buffer

import "strings"

// Position is a zero-based (line, character) pair. character counts code
// units the same way the client does -- this store does not transcode,
// it just treats offsets the way they arrive on the wire.
type Position struct {
	Line      int
	Character int
}

// Range is an ordered pair of Positions with Start <= End in lexicographic
// order. Start == End denotes an insertion point.
type Range struct {
	Start Position
	End   Position
}

// ChangeEvent is either a whole-document replacement (Range == nil) or a
// ranged edit.
type ChangeEvent struct {
	Range *Range
	Text  string
}

// EditTextBuffer holds one open document as a sequence of lines. Every
// line but possibly the last ends in '\n'; '\r' is kept as an ordinary
// character, so CRLF files round-trip byte for byte.
type EditTextBuffer struct {
	lines  [][]byte
	length int64
	edits  int64
}

// NewEditTextBuffer returns a buffer initialized with the given text.
func NewEditTextBuffer(initial string) *EditTextBuffer {
	b := &EditTextBuffer{}
	b.replaceDocument(initial)
	return b
}

// Lines returns the number of lines currently in the document.
func (b *EditTextBuffer) Lines() int { return len(b.lines) }

// Length returns the byte length of the document.
func (b *EditTextBuffer) Length() int64 { return b.length }

// EditCount returns the number of ApplyChange calls made so far, a
// monotonically increasing version number for this document.
func (b *EditTextBuffer) EditCount() int64 { return b.edits }

// ApplyChanges applies a sequence of change events in order, ignoring the
// per-change success result the way the reference client does -- the
// sender is trusted to only request edits it expects to land.
func (b *EditTextBuffer) ApplyChanges(changes []ChangeEvent) {
	for _, c := range changes {
		b.ApplyChange(c)
	}
}

// ApplyChange applies a single change event. The edit counter advances
// exactly once per call regardless of whether the edit could be applied;
// a false return leaves the document content unchanged.
func (b *EditTextBuffer) ApplyChange(c ChangeEvent) bool {
	b.edits++

	if c.Range == nil {
		b.replaceDocument(c.Text)
		return true
	}
	r := *c.Range

	if r.End.Line >= len(b.lines) {
		// Permits inserting at end-of-file past the last real line.
		b.lines = append(b.lines, nil)
	}

	if r.Start.Line == r.End.Line && !strings.Contains(c.Text, "\n") {
		return b.editLine(r, c.Text)
	}
	return b.editMultiLine(r, c.Text)
}

// editLine handles a single-line edit: start and end fall on the same
// line and the replacement text carries no line breaks of its own.
func (b *EditTextBuffer) editLine(r Range, text string) bool {
	line := b.lines[r.Start.Line]

	effectiveLen := len(line)
	if effectiveLen > 0 && line[effectiveLen-1] == '\n' {
		effectiveLen--
	}

	if r.Start.Character > effectiveLen {
		return false
	}
	endChar := r.End.Character
	if endChar > effectiveLen {
		endChar = effectiveLen
	}
	if endChar < r.Start.Character {
		return false
	}

	b.length -= int64(len(line))
	newLine := make([]byte, 0, r.Start.Character+len(text)+(len(line)-endChar))
	newLine = append(newLine, line[:r.Start.Character]...)
	newLine = append(newLine, text...)
	newLine = append(newLine, line[endChar:]...)
	b.lines[r.Start.Line] = newLine
	b.length += int64(len(newLine))
	return true
}

// editMultiLine handles an edit spanning more than one line, or a
// single-line edit whose replacement text itself contains newlines.
func (b *EditTextBuffer) editMultiLine(r Range, text string) bool {
	startLine := b.lines[r.Start.Line]
	before := startLine[:clampIndex(r.Start.Character, len(startLine))]

	endLine := b.lines[r.End.Line]
	after := endLine[clampIndex(r.End.Character, len(endLine)):]

	var removed int
	for i := r.Start.Line; i <= r.End.Line; i++ {
		removed += len(b.lines[i])
	}

	newContent := make([]byte, 0, len(before)+len(text)+len(after))
	newContent = append(newContent, before...)
	newContent = append(newContent, text...)
	newContent = append(newContent, after...)

	replacement := generateLines(string(newContent))

	spliced := make([][]byte, 0, len(b.lines)-(r.End.Line-r.Start.Line+1)+len(replacement))
	spliced = append(spliced, b.lines[:r.Start.Line]...)
	spliced = append(spliced, replacement...)
	spliced = append(spliced, b.lines[r.End.Line+1:]...)
	b.lines = spliced

	b.length += int64(len(newContent)) - int64(removed)
	return true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// RequestContent calls processor with the flat concatenation of every
// line, i.e. the document's exact current byte sequence. The slice is
// only valid for the duration of the call.
func (b *EditTextBuffer) RequestContent(processor func(content []byte)) {
	flat := make([]byte, 0, b.length)
	for _, line := range b.lines {
		flat = append(flat, line...)
	}
	processor(flat)
}

// RequestLine calls processor with line i (including its trailing '\n' if
// it has one). An out-of-range i yields an empty view. The slice is only
// valid for the duration of the call.
func (b *EditTextBuffer) RequestLine(i int, processor func(line []byte)) {
	if i < 0 || i >= len(b.lines) {
		processor(nil)
		return
	}
	processor(b.lines[i])
}

func (b *EditTextBuffer) replaceDocument(content string) {
	b.length = int64(len(content))
	b.lines = generateLines(content)
}

// generateLines splits content on '\n' and re-appends it to each piece,
// dropping the final phantom empty line when content itself ended in
// '\n', or stripping the trailing '\n' from the last piece otherwise.
func generateLines(content string) [][]byte {
	if content == "" {
		return nil
	}

	parts := strings.Split(content, "\n")
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = append([]byte(p), '\n')
	}

	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	} else {
		last := lines[len(lines)-1]
		lines[len(lines)-1] = last[:len(last)-1]
	}
	return lines
}
