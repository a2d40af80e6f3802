package emitter

import (
	"fmt"
	"io"

	"engine/internal/engerr"
)

// padWidth is the fixed width of a forward-jump line-number placeholder,
// per §4.6's line-patching protocol.
const padWidth = 80

func pad(n int) string {
	return fmt.Sprintf("%-*d", padWidth, n)
}

// patchSite records everything needed to rewrite a previously-written
// placeholder line once its true target is known: the byte offset the
// line started at, and the literal text preceding the padded field (kept
// so the rewritten line is byte-identical in length to the original).
type patchSite struct {
	offset int64
	prefix string
}

// Writer is the sole writer of the bytecode output file. It tracks the
// current write position implicitly via the underlying seeker and exposes
// the seek-write-seek-to-end pattern the line-patching protocol needs.
type Writer struct {
	w io.WriteSeeker
}

func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{w: w}
}

// Position returns the current byte offset, i.e. where the next WriteLine
// call will start writing.
func (fw *Writer) Position() (int64, error) {
	return fw.w.Seek(0, io.SeekCurrent)
}

// WriteLine appends one line (with its trailing newline) at the current
// end of the stream.
func (fw *Writer) WriteLine(line string) error {
	_, err := io.WriteString(fw.w, line+"\n")
	return err
}

// WritePlaceholderLine writes a line whose final field is a pending jump
// target, recording a patchSite so the target can be filled in later.
// prefix is everything up to (and including) the separating ':' before
// the padded field.
func (fw *Writer) WritePlaceholderLine(prefix string) (patchSite, error) {
	offset, err := fw.Position()
	if err != nil {
		return patchSite{}, err
	}
	if err := fw.WriteLine(prefix + pad(0)); err != nil {
		return patchSite{}, err
	}
	return patchSite{offset: offset, prefix: prefix}, nil
}

// Patch rewrites a previously reserved placeholder with its real target
// line number. It seeks back to the captured offset, rewrites the whole
// line (prefix unchanged, field repadded), then seeks back to the end of
// the file so normal appends resume correctly. Each site must be patched
// at most once.
func (fw *Writer) Patch(site patchSite, target int) error {
	if _, err := fw.w.Seek(site.offset, io.SeekStart); err != nil {
		return engerr.IOError(engerr.StageEmitter, 0, 0, "seek to patch site failed: %v", err)
	}
	if err := fw.WriteLine(site.prefix + pad(target)); err != nil {
		return engerr.IOError(engerr.StageEmitter, 0, 0, "rewrite of patch site failed: %v", err)
	}
	if _, err := fw.w.Seek(0, io.SeekEnd); err != nil {
		return engerr.IOError(engerr.StageEmitter, 0, 0, "seek to end after patch failed: %v", err)
	}
	return nil
}
