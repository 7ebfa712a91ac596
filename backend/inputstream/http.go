package inputstream

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPRange is a container.StreamingInputStream backed by HTTP range requests
// against a single URL. It serves sequential reads from an in-memory window filled
// by StreamRange prefetches, falling back to a synchronous ranged GET for any bytes
// a Read needs that haven't been prefetched yet.
type HTTPRange struct {
	url    string
	client *http.Client

	mu       sync.Mutex
	pos      int64
	size     int64
	window   []byte // bytes [winStart, winStart+len(window))
	winStart int64

	pending chan struct{} // closed and replaced by AbortRead; no read path waits on it
}

// NewHTTPRange issues a HEAD request to discover the resource's size, then returns a
// stream ready to be read sequentially from offset 0.
func NewHTTPRange(url string) (*HTTPRange, error) {
	client := &http.Client{}

	resp, err := client.Head(url)
	if err != nil {
		return nil, fmt.Errorf("inputstream: head %s: %w", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inputstream: head %s: status %s", url, resp.Status)
	}

	return &HTTPRange{
		url:     url,
		client:  client,
		size:    resp.ContentLength,
		pending: make(chan struct{}),
	}, nil
}

func (s *HTTPRange) fetchRange(from, to int64) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", from, to-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inputstream: range get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inputstream: range get: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inputstream: range body: %w", err)
	}
	return data, nil
}

func (s *HTTPRange) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.copyFromWindowLocked(buf)
	if ok {
		return n, nil
	}

	data, err := s.fetchRange(s.pos, min64(s.pos+int64(len(buf)), s.size))
	if err != nil {
		return 0, err
	}
	s.window, s.winStart = data, s.pos
	n, _ = s.copyFromWindowLocked(buf)
	return n, nil
}

// copyFromWindowLocked copies as much of buf as the current window covers starting
// at s.pos, advancing s.pos. ok is false if the window doesn't cover s.pos at all.
func (s *HTTPRange) copyFromWindowLocked(buf []byte) (n int, ok bool) {
	if s.pos < s.winStart || s.pos >= s.winStart+int64(len(s.window)) {
		return 0, false
	}
	off := s.pos - s.winStart
	n = copy(buf, s.window[off:])
	s.pos += int64(n)
	return n, true
}

func (s *HTTPRange) Seek(offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = offset
	return nil
}

func (s *HTTPRange) ReadAll(buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.Read(buf[total:])
		total += n
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("inputstream: short range read (%d of %d bytes)", total, len(buf))
		}
	}
	return nil
}

// AbortRead closes and replaces the pending channel. Neither Read nor StreamRange
// waits on that channel, so a ranged GET already in flight is not interrupted; since
// Read holds the stream's mutex for the whole fetch, AbortRead waits until it returns.
func (s *HTTPRange) AbortRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.pending:
	default:
		close(s.pending)
	}
	s.pending = make(chan struct{})
}

func (s *HTTPRange) Close() error { return nil }

// StreamRange eagerly fetches [from, to), optionally extended to maxSize bytes, and
// keeps the result as the current window so subsequent sequential Reads are served
// from memory instead of issuing one ranged GET per read call.
func (s *HTTPRange) StreamRange(from, to int64, allowExtend bool, maxSize int64) error {
	end := to
	if allowExtend && maxSize > to-from {
		end = from + maxSize
	}
	if end > s.size {
		end = s.size
	}

	data, err := s.fetchRange(from, end)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.window, s.winStart = data, from
	s.mu.Unlock()
	return nil
}

// DropPendingRequests is a no-op: fetchRange issues synchronous requests with no
// background queue to drain.
func (s *HTTPRange) DropPendingRequests() {}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
