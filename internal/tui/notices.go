package tui

import "github.com/AbdouGG/Deep-Code/internal/executor"

// Notices buffers notifications for the UI loop. Notify never blocks; when
// the buffer is full the notice is dropped.
type Notices struct {
	ch chan executor.Notice
}

func NewNotices(size int) *Notices {
	if size <= 0 {
		size = 32
	}
	return &Notices{ch: make(chan executor.Notice, size)}
}

func (n *Notices) Notify(x executor.Notice) {
	select {
	case n.ch <- x:
	default:
	}
}

func (n *Notices) C() <-chan executor.Notice {
	return n.ch
}
