package client

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Debounce defaults for the station search box.
const (
	DefaultDebounceDelay = 300 * time.Millisecond
	MinSearchLength      = 2
)

// Debouncer delays a search until input has been quiet for Delay. Each Input cancels
// the pending timer and any search still running, so only the last input fires.
type Debouncer struct {
	delay  time.Duration
	minLen int
	fire   func(ctx context.Context, text string)
	clear  func()

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	ctx     context.Context
	pending string
	closed  bool
}

// NewDebouncer returns a debouncer calling fire with the settled text. Inputs shorter
// than MinSearchLength runes call clear instead. delay <= 0 uses DefaultDebounceDelay.
func NewDebouncer(delay time.Duration, fire func(ctx context.Context, text string), clear func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{delay: delay, minLen: MinSearchLength, fire: fire, clear: clear}
}

// NewStationSearch debounces SearchStations and hands results to onResult.
// Short inputs report an empty list without a request.
func NewStationSearch(api *Client, delay time.Duration, onResult func([]StationSuggestion, error)) *Debouncer {
	return NewDebouncer(delay,
		func(ctx context.Context, text string) {
			hits, errSearch := api.SearchStations(ctx, text)
			if ctx.Err() != nil {
				return
			}
			onResult(hits, errSearch)
		},
		func() { onResult(nil, nil) },
	)
}

// Input records a keystroke.
func (d *Debouncer) Input(text string) {
	text = strings.TrimSpace(text)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	if utf8.RuneCountInString(text) < d.minLen {
		d.mu.Unlock()
		if d.clear != nil {
			d.clear()
		}
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.ctx, d.pending = ctx, text
	d.timer = time.AfterFunc(d.delay, func() {
		if ctx.Err() != nil {
			return
		}
		d.fire(ctx, text)
	})
	d.mu.Unlock()
}

// Flush runs a pending search now and waits for it, as pressing enter in the
// search box would. It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.closed || d.timer == nil || !d.timer.Stop() {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	ctx, text := d.ctx, d.pending
	d.mu.Unlock()
	d.fire(ctx, text)
}

// Stop cancels pending and running work. Later inputs are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.mu.Unlock()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
