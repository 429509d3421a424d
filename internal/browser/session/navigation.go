package session

import (
	"context"
	"sync"
)

// NavigationQueue buffers main-frame navigation events reported by a browser
// engine so that a caller blocking in Next observes navigations that happened
// between two calls. When full, the oldest event is dropped.
type NavigationQueue struct {
	mu     sync.Mutex
	events chan string
	seq    uint64
}

func NewNavigationQueue(size int) *NavigationQueue {
	if size < 1 {
		size = 1
	}
	return &NavigationQueue{events: make(chan string, size)}
}

// Push records a navigation to url. It never blocks.
func (q *NavigationQueue) Push(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	select {
	case q.events <- url:
		return
	default:
	}
	// Full: make room by discarding the oldest event.
	select {
	case <-q.events:
	default:
	}
	select {
	case q.events <- url:
	default:
	}
}

// Drain discards every buffered event.
func (q *NavigationQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-q.events:
		default:
			return
		}
	}
}

// Seq returns the number of navigations pushed so far.
func (q *NavigationQueue) Seq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

// Next blocks until a navigation is available or ctx is done.
func (q *NavigationQueue) Next(ctx context.Context) (string, error) {
	select {
	case url := <-q.events:
		return url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
