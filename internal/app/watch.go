package app

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// dirChangedMsg reports that the watched directory changed.
type dirChangedMsg struct{}

// dirWatcher watches one directory at a time and coalesces bursts of
// events into a single notification.
type dirWatcher struct {
	w      *fsnotify.Watcher
	events chan struct{}

	mu     sync.Mutex
	dir    string
	timer  *time.Timer
	closed bool
}

func newDirWatcher() (*dirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	d := &dirWatcher{w: w, events: make(chan struct{}, 1)}
	go d.loop()
	return d, nil
}

func (d *dirWatcher) loop() {
	for {
		select {
		case _, ok := <-d.w.Events:
			if !ok {
				return
			}
			d.mu.Lock()
			if d.timer != nil {
				d.timer.Stop()
			}
			d.timer = time.AfterFunc(watchDebounce, d.notify)
			d.mu.Unlock()
		case _, ok := <-d.w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (d *dirWatcher) notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- struct{}{}:
	default:
	}
}

// Watch switches to dir. Watching the same directory again is a no-op.
func (d *dirWatcher) Watch(dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || dir == d.dir {
		return nil
	}
	if d.dir != "" {
		_ = d.w.Remove(d.dir)
	}
	d.dir = ""
	if err := d.w.Add(dir); err != nil {
		return err
	}
	d.dir = dir
	return nil
}

// Wait returns a command that delivers the next change.
func (d *dirWatcher) Wait() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-d.events; !ok {
			return nil
		}
		return dirChangedMsg{}
	}
}

func (d *dirWatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.events)
	d.mu.Unlock()
	return d.w.Close()
}
