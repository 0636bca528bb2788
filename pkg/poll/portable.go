// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix || windows
// +build unix windows

package poll

import (
	"syscall"
	"time"
)

// Portable is a Poller built on the Go runtime's network poller. Every socket
// gets a watcher goroutine which waits until the socket is readable, reports
// its token and then parks until the next call of Wait. This mimics a
// level-triggered poller without ever reading data.
//
// A watcher keeps the socket's read lock while waiting. This is fine as long
// as the socket is only read after being reported readable.
//
// Readiness is learned from the runtime's poller, so a report may arrive late,
// up to a few milliseconds after another socket's, or even after the data
// was already read. Callers must read with a deadline and treat a timeout as
// a spurious wakeup.
type Portable struct {
	ready    chan uint64
	watchers map[uint64]*watcher
	rearm    []uint64
	closed   bool
}

type watcher struct {
	raw   syscall.RawConn
	token uint64
	arm   chan struct{}
	stop  chan struct{}
}

// NewPortable creates a new Portable Poller.
func NewPortable() *Portable {
	return &Portable{
		ready:    make(chan uint64, 256),
		watchers: make(map[uint64]*watcher),
	}
}

func (w *watcher) run(ready chan<- uint64) {
	for {
		select {
		case <-w.stop:
			return
		case <-w.arm:
		}

		if err := w.raw.Read(readable()); err != nil {
			// The socket was closed, a Remove call must have happened before.
			return
		}

		select {
		case <-w.stop:
			return
		case ready <- w.token:
		}
	}
}

func (p *Portable) Add(conn syscall.Conn, token uint64) error {
	if p.closed {
		return ErrClosed
	}
	if _, exists := p.watchers[token]; exists {
		return ErrTokenInUse
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	w := &watcher{
		raw:   raw,
		token: token,
		arm:   make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	w.arm <- struct{}{}
	p.watchers[token] = w

	go w.run(p.ready)
	return nil
}

func (p *Portable) Remove(token uint64) error {
	if p.closed {
		return ErrClosed
	}

	if w, exists := p.watchers[token]; exists {
		close(w.stop)
		delete(p.watchers, token)
	}
	return nil
}

func (p *Portable) Wait(events []Event, timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if len(events) == 0 {
		return 0, nil
	}

	// Sockets reported by the last call are watched again.
	for _, token := range p.rearm {
		if w, exists := p.watchers[token]; exists {
			select {
			case w.arm <- struct{}{}:
			default:
			}
		}
	}
	p.rearm = p.rearm[:0]

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	cnt := 0
	for cnt < len(events) {
		var token uint64
		if cnt == 0 {
			select {
			case token = <-p.ready:
			case <-timer.C:
				return 0, nil
			}
		} else {
			select {
			case token = <-p.ready:
			default:
				return cnt, nil
			}
		}

		if _, exists := p.watchers[token]; !exists {
			continue
		}
		events[cnt] = Event{Token: token}
		p.rearm = append(p.rearm, token)
		cnt++
	}
	return cnt, nil
}

func (p *Portable) Close() error {
	if p.closed {
		return ErrClosed
	}

	for token, w := range p.watchers {
		close(w.stop)
		delete(p.watchers, token)
	}
	p.closed = true
	return nil
}
