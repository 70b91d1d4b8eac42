package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Kind tells what the game loop applied for a record.
type Kind uint8

const (
	KindPacket  Kind = iota // an inbound envelope was dispatched
	KindConnect             // a session was accepted
	KindLogin               // an auth result was applied
	KindClose               // a closed session was dropped
)

// ErrIncomplete is returned by Close when records were dropped, so the
// journal can no longer replay the run.
var ErrIncomplete = errors.New("journal is incomplete")

// Record is one input the game loop applied, in the order it applied it.
// Packets carry Seq and Data, connects carry Addr, logins carry Account and
// Err, closes carry Err as the reason.
type Record struct {
	Kind    Kind   `msgpack:"k"`
	Tick    uint64 `msgpack:"t"`
	Seq     uint64 `msgpack:"s,omitempty"`
	Session uint64 `msgpack:"p"`
	Data    []byte `msgpack:"d,omitempty"`
	Addr    string `msgpack:"a,omitempty"`
	Account string `msgpack:"n,omitempty"`
	Err     string `msgpack:"e,omitempty"`
}

// Writer appends records to a zstd-compressed msgpack stream on its own
// goroutine. The game loop only does a non-blocking channel send.
type Writer struct {
	path    string
	f       *os.File
	zw      *zstd.Encoder
	bw      *bufio.Writer
	enc     *msgpack.Encoder
	ch      chan Record
	done    chan struct{}
	dropped atomic.Uint64
	closeMu sync.Once
	err     error
	log     *zap.Logger
}

// Path returns the journal file name for a run.
func Path(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("journal-%s.msgpack.zst", runID))
}

// Create opens a new journal file under dir and starts the writer goroutine.
func Create(dir, runID string, log *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	path := Path(dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(zw, 64*1024)
	w := &Writer{
		path: path,
		f:    f,
		zw:   zw,
		bw:   bw,
		enc:  msgpack.NewEncoder(bw),
		ch:   make(chan Record, 4096),
		done: make(chan struct{}),
		log:  log,
	}
	go w.run()
	log.Info("input journal opened", zap.String("path", path))
	return w, nil
}

func (w *Writer) run() {
	defer close(w.done)
	for rec := range w.ch {
		if w.err != nil {
			continue
		}
		if err := w.enc.Encode(&rec); err != nil {
			w.err = err
			w.log.Error("journal write failed, further records are discarded", zap.Error(err))
		}
	}
}

// Append queues a record. The data slice must not be modified afterwards.
// When the writer falls behind the record is dropped, counted and reported;
// the first drop and every 1024th after it log a warning.
func (w *Writer) Append(rec Record) {
	select {
	case w.ch <- rec:
	default:
		w.drop(rec)
	}
}

func (w *Writer) drop(rec Record) {
	if n := w.dropped.Add(1); n == 1 || n%1024 == 0 {
		w.log.Warn("journal queue full, run can no longer be replayed",
			zap.String("path", w.path),
			zap.Uint64("dropped", n),
			zap.Uint64("tick", rec.Tick),
		)
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

func (w *Writer) Path() string { return w.path }

// Close drains the queue and finishes the zstd frame.
func (w *Writer) Close() error {
	var err error
	w.closeMu.Do(func() {
		close(w.ch)
		<-w.done
		err = errors.Join(w.err, w.bw.Flush(), w.zw.Close(), w.f.Close())
		if n := w.dropped.Load(); n > 0 {
			err = errors.Join(err, fmt.Errorf("%w: %d records dropped", ErrIncomplete, n))
		}
	})
	return err
}

// Reader replays a journal file.
type Reader struct {
	f   *os.File
	zr  *zstd.Decoder
	dec *msgpack.Decoder
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &Reader{f: f, zr: zr, dec: msgpack.NewDecoder(bufio.NewReader(zr))}, nil
}

// Next returns the next record, or io.EOF at the end of the journal.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode journal record: %w", err)
	}
	return rec, nil
}

func (r *Reader) Close() error {
	r.zr.Close()
	return r.f.Close()
}
