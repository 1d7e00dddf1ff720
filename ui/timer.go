package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// timer shows elapsed run time as mm:ss. It ticks in its own goroutine and
// freezes in place when paused, so a finished run keeps its final time on
// screen until the next one starts.
type timer struct {
	startTime time.Time
	running   bool
	mtx       *sync.Mutex
	text      *canvas.Text
	stop      chan struct{}
}

func newTimer() *timer {
	return &timer{
		startTime: time.Time{},
		mtx:       &sync.Mutex{},
		text:      canvas.NewText("00:00", nil),
		stop:      make(chan struct{}),
	}
}

// Start begins counting from the given time.
func (t *timer) Start(start time.Time) {
	t.mtx.Lock()
	t.startTime = start
	t.running = true
	t.mtx.Unlock()
}

// Pause freezes the display at the current elapsed time.
func (t *timer) Pause() {
	t.mtx.Lock()
	t.running = false
	t.mtx.Unlock()
}

// Stop ends the update loop for good. Call once, when the window closes.
func (t *timer) Stop() {
	close(t.stop)
}

func (t *timer) Go() {
	go func() {
		for range time.Tick(time.Second) {
			select {
			case <-t.stop:
				return
			default:
			}
			fyne.Do(func() {
				t.mtx.Lock()
				if t.running {
					elapsed := time.Since(t.startTime)
					minutes := int(elapsed.Minutes())
					seconds := int(elapsed.Seconds()) % 60
					t.text.Text = fmt.Sprintf("%02d:%02d", minutes, seconds)
					t.text.Refresh()
				}
				t.mtx.Unlock()
			})
		}
	}()
}
