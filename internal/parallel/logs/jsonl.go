package logs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/spf13/afero"
)

var _ parallel.Sink = (*JSONLWriter)(nil)

// Record is one line of the JSONL run log.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Host        string    `json:"host"`
	Username    string    `json:"username"`
	Status      string    `json:"status"`
	OK          bool      `json:"ok"`
	ExitCode    *int      `json:"exit_code"`
	DurationSec float64   `json:"duration_sec"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason"`
	Command     string    `json:"command"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
}

// NewRecord converts an outcome into its log record.
func NewRecord(o session.Outcome) Record {
	ts := o.End
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		Timestamp:   ts.UTC(),
		Host:        o.Target.Name,
		Username:    o.Username,
		Status:      o.Status.String(),
		OK:          o.OK(),
		ExitCode:    o.ExitCode,
		DurationSec: o.Duration.Seconds(),
		Attempts:    o.Attempts,
		Reason:      o.Reason,
		Command:     o.Target.Command,
		Stdout:      string(o.Stdout),
		Stderr:      string(o.Stderr),
	}
}

// JSONLWriter writes one JSON object per completed host to a log file. The
// file holds a single run: an existing file is truncated on open.
type JSONLWriter struct {
	mu   sync.Mutex
	path string
	f    afero.File
	enc  *json.Encoder
}

// NewJSONLWriter opens path for writing, truncating an existing file and
// creating its parent directory when missing.
func NewJSONLWriter(fs afero.Fs, path string) (*JSONLWriter, error) {
	path = config.ExpandPath(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't create log directory "+dir,
				"Check your permissions or pick another --log-file.")
		}
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open log file "+path,
			"Check your permissions or pick another --log-file.")
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{path: path, f: f, enc: enc}, nil
}

func (w *JSONLWriter) String() string { return "log file " + w.path }

// Path returns the log file location.
func (w *JSONLWriter) Path() string { return w.path }

// Record appends the record for o.
func (w *JSONLWriter) Record(o session.Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New(errors.ErrExec,
			"Log writer is closed",
			"This is unexpected - create a new JSONLWriter.")
	}
	if err := w.enc.Encode(NewRecord(o)); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write log record for "+o.Target.Name,
			"Check free space and permissions for "+w.path+".")
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Can't close log file "+w.path, "")
	}
	return nil
}
