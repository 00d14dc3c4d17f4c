package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// logSink fans completed lines out to one or more buffered writers from a
// single goroutine, so handlers never block on slow sinks.
type logSink struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}
	closing sync.Once

	mu      sync.Mutex
	targets []*bufio.Writer
	failed  error
}

func newLogSink(writers []io.Writer, bufSize int) *logSink {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	targets := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			targets = append(targets, bufio.NewWriterSize(w, bufSize))
		}
	}
	s := &logSink{
		lines:   make(chan []byte, 256),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
		targets: targets,
	}
	go s.run()
	return s
}

func (s *logSink) run() {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.flushAll()
				close(s.stopped)
				return
			}
			if len(line) == 0 {
				continue
			}
			if err := s.fanOut(line); err != nil {
				s.recordFailure(err)
			}
		case ack := <-s.flushes:
			ack <- s.flushAll()
		}
	}
}

// Write hands the line to the sink goroutine. When the queue is full it
// blocks rather than drop the line.
func (s *logSink) Write(p []byte) error {
	if err := s.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	s.lines <- line
	return nil
}

// Flush blocks until everything queued so far reaches the targets.
func (s *logSink) Flush() error {
	if err := s.failure(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	s.flushes <- ack
	return <-ack
}

// Close drains the queue and reports the first write error seen.
func (s *logSink) Close() error {
	s.closing.Do(func() {
		close(s.lines)
	})
	<-s.stopped
	return s.failure()
}

func (s *logSink) fanOut(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if _, err := t.Write(line); err != nil {
			return err
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *logSink) flushAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, t := range s.targets {
		if err := t.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *logSink) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *logSink) recordFailure(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = err
	}
}
