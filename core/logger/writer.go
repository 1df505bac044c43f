package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter moves encoding output off the logging goroutines: lines are
// queued and a single loop writes them to every sink.
type asyncWriter struct {
	lines  chan []byte
	flush  chan chan error
	done   chan struct{}
	closer sync.Once

	mu    sync.Mutex
	sinks []*bufio.Writer
	// failed is the first write error; later writes are refused.
	failed error
}

func newAsyncWriter(outs []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, out := range outs {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				_ = w.sync()
				return
			}
			w.emit(line)
		case reply := <-w.flush:
			open := w.drain()
			reply <- w.sync()
			if !open {
				return
			}
		}
	}
}

// drain writes lines already queued. It reports false once the queue is
// closed.
func (w *asyncWriter) drain() bool {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return false
			}
			w.emit(line)
		default:
			return true
		}
	}
}

// Write queues a copy of p. A full queue blocks rather than dropping lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) > 0 {
		w.lines <- append([]byte(nil), p...)
	}
	return nil
}

// Flush returns once every line queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	reply := make(chan error, 1)
	w.flush <- reply
	return <-reply
}

// Close drains the queue and stops the loop.
func (w *asyncWriter) Close() error {
	w.closer.Do(func() { close(w.lines) })
	<-w.done
	return w.err()
}

// emit writes and flushes one line so a crash loses at most the queue.
func (w *asyncWriter) emit(line []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		_, err := s.Write(line)
		if err == nil {
			err = s.Flush()
		}
		if err != nil && w.failed == nil {
			w.failed = err
		}
	}
}

func (w *asyncWriter) sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}
