// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReuseAddrListenConfig returns a ListenConfig whose sockets have
// SO_REUSEADDR set before bind. It works for both stream and datagram
// sockets.
func ReuseAddrListenConfig() *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(network, address string, rawConn syscall.RawConn) error {
			var sockoptErr error
			err := rawConn.Control(func(fd uintptr) {
				sockoptErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockoptErr
		},
	}
}
