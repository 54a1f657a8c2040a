// Package logs holds the file-backed outcome sinks: a per-host save directory
// and a JSONL run log.
package logs

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/spf13/afero"
)

var _ parallel.Sink = (*SaveDirWriter)(nil)

// SaveDirWriter writes each host's captured output to
// <dir>/<host>.stdout.txt and <dir>/<host>.stderr.txt.
type SaveDirWriter struct {
	fs     afero.Fs
	dir    string
	closed bool
}

// NewSaveDirWriter creates dir (and parents) so hosts can write to it as
// they complete.
func NewSaveDirWriter(fs afero.Fs, dir string) (*SaveDirWriter, error) {
	dir = config.ExpandPath(dir)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create output directory "+dir,
			"Check your permissions or pick another --save-dir.")
	}
	return &SaveDirWriter{fs: fs, dir: dir}, nil
}

func (w *SaveDirWriter) String() string { return "save-dir " + w.dir }

// Record writes both streams of o, even when empty, so every host that
// produced an outcome has a file pair.
func (w *SaveDirWriter) Record(o session.Outcome) error {
	if w.closed {
		return errors.New(errors.ErrExec,
			"Output writer is closed",
			"This is unexpected - create a new SaveDirWriter.")
	}

	base := filepath.Join(w.dir, parallel.SanitizeFilename(o.Target.Name))
	if err := w.write(base+".stdout.txt", o.Stdout); err != nil {
		return err
	}
	return w.write(base+".stderr.txt", o.Stderr)
}

func (w *SaveDirWriter) write(path string, data []byte) error {
	if err := afero.WriteFile(w.fs, path, data, fileMode); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write host output "+path,
			"Check your permissions.")
	}
	return nil
}

// Dir returns the output directory.
func (w *SaveDirWriter) Dir() string {
	return w.dir
}

// Close finalizes the writer.
func (w *SaveDirWriter) Close() error {
	w.closed = true
	return nil
}

// fileMode for created log files.
const fileMode os.FileMode = 0o644
