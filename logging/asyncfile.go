package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrClosed is returned when writing to an AsyncFile after Close
var ErrClosed = errors.New("async file is closed")

// AsyncFile queues writes and flushes them to disk from a background goroutine
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	err     error
}

// NewAsyncFile creates (or truncates) path and starts the writer goroutine
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 256),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues a copy of data
func (af *AsyncFile) Write(data []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, ErrClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	af.queue <- buf
	return len(data), nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			af.mu.Lock()
			if af.err == nil {
				af.err = err
			}
			af.mu.Unlock()
		}
	}
}

// Close drains the queue and closes the file. The first write error seen by
// the background writer is returned, if any.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.stopped {
		af.mu.Unlock()
		return nil
	}
	af.stopped = true
	close(af.queue)
	af.mu.Unlock()

	af.wg.Wait()
	closeErr := af.file.Close()

	af.mu.Lock()
	defer af.mu.Unlock()
	if af.err != nil {
		return fmt.Errorf("writing %s: %w", af.file.Name(), af.err)
	}
	return closeErr
}
