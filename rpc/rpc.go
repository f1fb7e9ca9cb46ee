// Package rpc shares the transport state between two patchgrid processes
// over the network, so a second instance can follow the first one's
// timeline.
package rpc

import (
	"fmt"
	"net"
	"net/http"
	"net/rpc"

	"github.com/patchgrid/patchgrid"
)

type SyncServer struct {
	channel chan patchgrid.TransportState
}

func (s *SyncServer) Sync(state patchgrid.TransportState, reply *int) error {
	select {
	case s.channel <- state:
	default:
	}
	return nil
}

// Receiver starts listening for transport states pushed by a Sender. The
// channel holds at most one state; an unread state is dropped in favor of
// the newer one.
func Receiver(port int) (<-chan patchgrid.TransportState, error) {
	c := make(chan patchgrid.TransportState, 1)
	server := &SyncServer{channel: c}
	rpc.Register(server)
	rpc.HandleHTTP()
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %w", err)
	}
	go func() {
		defer close(c)
		http.Serve(l, nil)
	}()
	return c, nil
}

// Sender connects to a Receiver and forwards every transport state pushed
// into the returned channel. The forwarding goroutine exits on the first
// call error or when the channel is closed.
func Sender(serverAddress string, port int) (chan<- patchgrid.TransportState, error) {
	c := make(chan patchgrid.TransportState, 256)
	client, err := rpc.DialHTTP("tcp", fmt.Sprintf("%s:%d", serverAddress, port))
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %w", err)
	}
	go func() {
		for state := range c {
			var reply int
			if err := client.Call("SyncServer.Sync", state, &reply); err != nil {
				return
			}
		}
	}()
	return c, nil
}
