package socketio

import (
	"sort"
	"sync"
	"time"
)

// Broadcast topics.
const (
	TopicDevices = "devices"
	TopicTheme   = "theme"
)

// BroadcastDebouncer collapses rapid change notifications into one broadcast
// per topic. Each Trigger restarts the window; when it elapses every pending
// topic fires once.
type BroadcastDebouncer struct {
	window    time.Duration
	callbacks map[string]func()

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer. callbacks maps a topic to its broadcast.
func NewBroadcastDebouncer(window time.Duration, callbacks map[string]func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:    window,
		callbacks: callbacks,
		pending:   make(map[string]bool),
	}
}

// Trigger marks topic as changed. Topics without a callback are ignored.
func (d *BroadcastDebouncer) Trigger(topic string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if _, ok := d.callbacks[topic]; !ok {
		return
	}
	d.pending[topic] = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	topics := make([]string, 0, len(d.pending))
	for topic := range d.pending {
		topics = append(topics, topic)
	}
	clear(d.pending)
	d.mu.Unlock()

	sort.Strings(topics)
	for _, topic := range topics {
		d.callbacks[topic]()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	clear(d.pending)
}
