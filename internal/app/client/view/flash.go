package view

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"repairjournal/internal/app/client/auth"
)

// Flash - короткое сообщение об ошибке входа, которое гаснет через ttl
type Flash struct {
	out io.Writer
	ttl time.Duration

	mu      sync.Mutex
	message string
	seq     int
	timer   *time.Timer
}

func NewFlash(out io.Writer, ttl time.Duration) *Flash {
	if ttl <= 0 {
		ttl = auth.MessageTTL
	}
	return &Flash{out: out, ttl: ttl}
}

func (f *Flash) Show(err error) {
	msg := err.Error()
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		msg = authErr.Message
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.message = msg
	f.seq++
	seq := f.seq
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.ttl, func() { f.clear(seq) })

	color.New(color.FgRed).Fprintln(f.out, msg)
}

// Current - сообщение, которое еще не погасло
func (f *Flash) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *Flash) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.message = ""
}

// clear гасит сообщение, если после него не было нового
func (f *Flash) clear(seq int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq == seq {
		f.message = ""
	}
}
