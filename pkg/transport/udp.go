/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package transport is the UDP half of C1, the Wire Reader: it owns the
// socket and hands each datagram, with its source address, to whatever
// consumes them (pkg/ingest.Dispatcher in production). Nothing in here
// understands NetFlow/IPFIX framing — that starts one layer up.
package transport

import (
	"context"
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/flowforge/flowforge/pkg/flowlog"
	"github.com/flowforge/flowforge/pkg/metrics"
)

// Datagram is one received UDP packet plus the address it came from.
type Datagram struct {
	SensorIP net.IP
	Payload  []byte
}

// UDPListenerConfig tunes the listener's buffers.
type UDPListenerConfig struct {
	// PacketBufferSize bounds one read. NetFlow/IPFIX exporters are
	// expected to stay under their path MTU; 1500 covers the common
	// case while leaving room for exporters that push larger datagrams
	// on networks provisioned for it.
	PacketBufferSize int
	// ChannelBufferSize moves packet buffering from the kernel socket
	// buffer into user space, absorbing bursts without relying on the
	// OS to hold onto unread datagrams.
	ChannelBufferSize int
}

func (c UDPListenerConfig) withDefaults() UDPListenerConfig {
	if c.PacketBufferSize <= 0 {
		c.PacketBufferSize = 1500
	}
	if c.ChannelBufferSize <= 0 {
		c.ChannelBufferSize = 256
	}
	return c
}

// UDPListener binds one UDP socket and fans out received datagrams over a
// channel, per the teacher's udp.go shape: SO_REUSEADDR/SO_REUSEPORT so
// several listener processes can share one port, a reused read buffer, and
// a right-sized copy handed off so the channel never pins the oversized
// read buffer in memory.
type UDPListener struct {
	bindAddr string
	cfg      UDPListenerConfig
	datagramCh chan Datagram

	listener net.PacketConn
}

// NewUDPListener builds a listener bound to bindAddr (host:port) once
// Listen is called.
func NewUDPListener(bindAddr string, cfg UDPListenerConfig) *UDPListener {
	cfg = cfg.withDefaults()
	return &UDPListener{
		bindAddr:   bindAddr,
		cfg:        cfg,
		datagramCh: make(chan Datagram, cfg.ChannelBufferSize),
	}
}

// Listen binds the socket and blocks until ctx is cancelled or the read
// loop hits an unrecoverable error.
func (l *UDPListener) Listen(ctx context.Context) error {
	logger := flowlog.FromContext(ctx)
	defer close(l.datagramCh)

	listenConfig := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			controlErr := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if controlErr != nil {
				return controlErr
			}
			return sockErr
		},
	}

	conn, err := listenConfig.ListenPacket(ctx, "udp", l.bindAddr)
	if err != nil {
		logger.Error(err, "failed to bind UDP listener", "addr", l.bindAddr)
		return err
	}
	l.listener = conn
	defer l.listener.Close()

	errCh := make(chan error, 1)
	go l.readLoop(logger, errCh)

	logger.Info("started UDP listener", "addr", l.bindAddr)
	select {
	case <-ctx.Done():
		logger.Info("shutting down UDP listener", "addr", l.bindAddr)
		l.listener.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (l *UDPListener) readLoop(logger interface {
	Error(err error, msg string, keysAndValues ...interface{})
}, errCh chan<- error) {
	buffer := make([]byte, l.cfg.PacketBufferSize)
	for {
		n, addr, err := l.listener.ReadFrom(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			metrics.DatagramsDropped.WithLabelValues("socket_read").Inc()
			logger.Error(err, "failed to read from UDP socket")
			errCh <- err
			return
		}

		payload := make([]byte, n)
		copy(payload, buffer[:n])

		sensorIP := sensorIPFromAddr(addr)
		select {
		case l.datagramCh <- Datagram{SensorIP: sensorIP, Payload: payload}:
		default:
			metrics.DatagramsDropped.WithLabelValues("listener_channel_full").Inc()
		}
	}
}

func sensorIPFromAddr(addr net.Addr) net.IP {
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		return udpAddr.IP
	}
	return nil
}

// Datagrams returns the channel of received datagrams.
func (l *UDPListener) Datagrams() <-chan Datagram {
	return l.datagramCh
}
