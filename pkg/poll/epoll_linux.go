// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package poll

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformPoller() (Poller, error) {
	return NewEpoll()
}

// Epoll is a level-triggered Poller based on Linux' epoll(7).
//
// The registered sockets stay in non-blocking mode and remain usable through
// the Go runtime; epoll only observes their file descriptors.
type Epoll struct {
	epfd   int
	fds    map[uint64]int
	tokens map[int32]uint64
	buf    []unix.EpollEvent
}

// NewEpoll creates a new epoll instance.
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	return &Epoll{
		epfd:   epfd,
		fds:    make(map[uint64]int),
		tokens: make(map[int32]uint64),
	}, nil
}

func rawFd(conn syscall.Conn) (fd int, err error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	ctrlErr := rawConn.Control(func(f uintptr) {
		fd = int(f)
	})
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

func (ep *Epoll) Add(conn syscall.Conn, token uint64) error {
	if ep.epfd < 0 {
		return ErrClosed
	}
	if _, exists := ep.fds[token]; exists {
		return ErrTokenInUse
	}

	fd, err := rawFd(conn)
	if err != nil {
		return err
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add: %w", err)
	}

	ep.fds[token] = fd
	ep.tokens[int32(fd)] = token
	return nil
}

func (ep *Epoll) Remove(token uint64) error {
	if ep.epfd < 0 {
		return ErrClosed
	}

	fd, exists := ep.fds[token]
	if !exists {
		return nil
	}
	delete(ep.fds, token)
	delete(ep.tokens, int32(fd))

	// Linux < 2.6.9 requires a non-nil event for EPOLL_CTL_DEL.
	var ev unix.EpollEvent
	err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_DEL, fd, &ev)
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("epoll_ctl del: %w", err)
	}
	return nil
}

func (ep *Epoll) Wait(events []Event, timeout time.Duration) (int, error) {
	if ep.epfd < 0 {
		return 0, ErrClosed
	}
	if len(events) == 0 {
		return 0, nil
	}

	if cap(ep.buf) < len(events) {
		ep.buf = make([]unix.EpollEvent, len(events))
	}
	buf := ep.buf[:len(events)]

	n, err := unix.EpollWait(ep.epfd, buf, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}

	cnt := 0
	for _, ev := range buf[:n] {
		// Events for sockets removed by now are dropped.
		if token, ok := ep.tokens[ev.Fd]; ok {
			events[cnt] = Event{Token: token}
			cnt++
		}
	}
	return cnt, nil
}

func (ep *Epoll) Close() error {
	if ep.epfd < 0 {
		return ErrClosed
	}

	err := unix.Close(ep.epfd)
	ep.epfd = -1
	return err
}
