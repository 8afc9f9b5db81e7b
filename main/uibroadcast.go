package main

import (
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// uibroadcaster fans one message out to every connected status socket.
// Sockets that fail a write are dropped.
type uibroadcaster struct {
	sockets    []*websocket.Conn
	sockets_mu sync.Mutex
	messages   chan []byte
}

func NewUIBroadcaster() *uibroadcaster {
	ret := &uibroadcaster{
		sockets:  make([]*websocket.Conn, 0),
		messages: make(chan []byte, 16),
	}
	go ret.writer()
	return ret
}

// Send queues msg, dropping it when the writer is behind.
func (u *uibroadcaster) Send(msg []byte) {
	select {
	case u.messages <- msg:
	default:
	}
}

func (u *uibroadcaster) AddSocket(sock *websocket.Conn) {
	u.sockets_mu.Lock()
	u.sockets = append(u.sockets, sock)
	u.sockets_mu.Unlock()
}

func (u *uibroadcaster) NumSockets() int {
	u.sockets_mu.Lock()
	defer u.sockets_mu.Unlock()
	return len(u.sockets)
}

func (u *uibroadcaster) writer() {
	for msg := range u.messages {
		p := make([]*websocket.Conn, 0) // Keep a list of the writeable sockets.
		u.sockets_mu.Lock()
		for _, sock := range u.sockets {
			err := sock.SetWriteDeadline(time.Now().Add(time.Second))
			_, err2 := sock.Write(msg)
			if err == nil && err2 == nil {
				p = append(p, sock)
			} else {
				sock.Close()
			}
		}
		u.sockets = p
		u.sockets_mu.Unlock()
	}
}
