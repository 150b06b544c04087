//go:build linux

package poller

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux readiness multiplexer: epoll in edge-triggered,
// one-shot mode. EPOLLONESHOT disables a descriptor's registration after
// the first delivery so a readiness event has exactly one owner until it
// re-arms or closes; EPOLLET means the owner must drain the descriptor
// fully before the next arm, never relying on a level-triggered retrigger.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates a new Poller.
func NewPoller(maxEvents int) (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if maxEvents <= 0 {
		maxEvents = 2048
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

func (p *epollPoller) Add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) ArmRead(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) ArmWrite(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) Wait(timeoutMs int, dst []Event) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}

	for i := 0; i < n; i++ {
		raw := p.events[i]
		ev := Event{Fd: int(raw.Fd)}
		if raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ev.Error = true
		}
		if raw.Events&unix.EPOLLRDHUP != 0 {
			ev.Error = true
		}
		if raw.Events&unix.EPOLLIN != 0 {
			ev.Readable = true
		}
		if raw.Events&unix.EPOLLOUT != 0 {
			ev.Writable = true
		}
		dst = append(dst, ev)
	}
	return dst, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
