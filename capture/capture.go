// Package capture records raw relay messages to a line based file and reads
// them back, one `<unix millis> <hex>` record per line.
package capture

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"k8s.io/klog/v2"
)

var ErrBadRecord = errors.New("capture: malformed record")

type Record struct {
	Time time.Time
	Data []byte
}

type Writer struct {
	mu    sync.Mutex
	out   *bufio.Writer
	gz    *gzip.Writer
	file  io.Closer
	clock func() time.Time
}

// Create opens name for writing, gzip compressed when it ends with .gz
func Create(name string) (*Writer, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	w := NewWriter(f, strings.HasSuffix(name, ".gz"))
	w.file = f
	return w, nil
}

func NewWriter(out io.Writer, compress bool) *Writer {
	w := &Writer{clock: time.Now}
	if compress {
		w.gz = gzip.NewWriter(out)
		out = w.gz
	}
	w.out = bufio.NewWriter(out)
	return w
}

func (w *Writer) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.WriteString(strconv.FormatInt(w.clock().UnixMilli(), 10)); err != nil {
		return err
	}
	_ = w.out.WriteByte(' ')
	_, _ = w.out.WriteString(hex.EncodeToString(data))
	return w.out.WriteByte('\n')
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.out.Flush()
	if w.gz != nil {
		err = errors.Join(err, w.gz.Close())
	}
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
	}
	return err
}

type Reader struct {
	scanner *bufio.Scanner
	file    io.Closer
	line    int
}

// Open reads a capture file written by Create
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	r, err := NewReader(f, strings.HasSuffix(name, ".gz"))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func NewReader(in io.Reader, compressed bool) (*Reader, error) {
	if compressed {
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("open gzip capture: %w", err)
		}
		in = gz
	}
	scanner := bufio.NewScanner(in)
	// brotli frames from busy rooms get large
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}, nil
}

// Next returns io.EOF after the last record, blank lines are skipped
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		ts, payload, ok := strings.Cut(line, " ")
		if !ok {
			return Record{}, fmt.Errorf("%w: line %d has no payload", ErrBadRecord, r.line)
		}
		millis, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %s", ErrBadRecord, r.line, err.Error())
		}
		data, err := hex.DecodeString(payload)
		if err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %s", ErrBadRecord, r.line, err.Error())
		}
		return Record{Time: time.UnixMilli(millis), Data: data}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Dialer records every received message of the transports it dials
type Dialer struct {
	client.Dialer
	Writer *Writer
}

func (d *Dialer) Dial(ctx context.Context, url string) (client.Transport, error) {
	t, err := d.Dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return &transport{Transport: t, writer: d.Writer}, nil
}

type transport struct {
	client.Transport
	writer *Writer
	failed bool
}

func (t *transport) TryRecv() ([]byte, error) {
	data, err := t.Transport.TryRecv()
	if err != nil {
		return data, err
	}
	if werr := t.writer.Write(data); werr != nil && !t.failed {
		// keep the connection, only warn once
		t.failed = true
		klog.Warningf("capture write failed: %s", werr.Error())
	}
	return data, nil
}
