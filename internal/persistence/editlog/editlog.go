// Package editlog appends every accepted edit to hour-rotated compressed
// JSONL files. Blobs are stored in the server clock frame, so a replay feeds
// them back with zero skew and lands on identical state.
package editlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/RyanDowne/hifi/internal/sim/domain"
)

const filePrefix = "edits"

const defaultRotateLayout = "2006-01-02-15"

// Options tunes segment rotation.
type Options struct {
	// RotateLayout is the time layout that names segments; entries whose
	// stamps format the same share a file. Hourly when empty. A shorter
	// layout shrinks the window lost if the host dies before a mirror
	// picks the segment up.
	RotateLayout string
	// OnClose receives the path of each finished segment, rotation and
	// final Close both. It runs with the writer lock held and can fire
	// from the domain loop, so it must not block.
	OnClose func(path string)
}

type Writer struct {
	dir  string
	opts Options

	mu       sync.Mutex
	curStamp string
	curPath  string
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewWriter(dir string) *Writer {
	return NewWriterWithOptions(dir, Options{})
}

func NewWriterWithOptions(dir string, opts Options) *Writer {
	if opts.RotateLayout == "" {
		opts.RotateLayout = defaultRotateLayout
	}
	return &Writer{dir: dir, opts: opts}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// WriteEdit appends one edit, rotating to a new file on a layout boundary.
func (w *Writer) WriteEdit(e domain.LoggedEdit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	stamp := time.Now().UTC().Format(w.opts.RotateLayout)
	if stamp != w.curStamp {
		if err := w.rotateLocked(stamp); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(stamp string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := w.pathForStamp(stamp)
	// append mode: a restart within the segment adds a second zstd frame
	// to the same file, which decoders treat as one stream
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curStamp = stamp
	w.curPath = path
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	if w.curPath != "" && w.opts.OnClose != nil {
		w.opts.OnClose(w.curPath)
	}
	w.curPath = ""
	return err1
}

func (w *Writer) pathForStamp(stamp string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", filePrefix, stamp))
}

// ReadFile decodes one log file back into edits.
func ReadFile(path string) ([]domain.LoggedEdit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []domain.LoggedEdit
	sc := bufio.NewScanner(dec)
	// a line carries a base64 blob, so the default token limit is too small
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.LoggedEdit
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ReadDir decodes every log file under dir in chronological order. The hour
// stamp in the file name sorts lexically, so name order is time order.
func ReadDir(dir string) ([]domain.LoggedEdit, error) {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []domain.LoggedEdit
	for _, p := range paths {
		edits, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, edits...)
	}
	return out, nil
}
