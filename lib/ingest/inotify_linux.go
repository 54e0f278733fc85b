// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// watchFile signals on the returned channel whenever the file at path
// is written, created, or renamed into place. It watches the parent
// directory so rotation is seen even before the new file exists.
// Signals coalesce: the channel has capacity 1. Call stop to release
// the inotify descriptor.
func watchFile(path string) (<-chan struct{}, func(), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("inotify_init1: %w", err)
	}

	directory, filename := filepath.Split(filepath.Clean(path))
	if directory == "" {
		directory = "."
	}
	mask := uint32(unix.IN_MODIFY | unix.IN_CREATE | unix.IN_MOVED_TO | unix.IN_CLOSE_WRITE | unix.IN_DELETE)
	if _, err := unix.InotifyAddWatch(fd, directory, mask); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("inotify_add_watch on %s: %w", directory, err)
	}

	wake := make(chan struct{}, 1)
	stopChannel := make(chan struct{})
	go inotifyReadLoop(fd, filename, wake, stopChannel)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(stopChannel)
	}
	return wake, stop, nil
}

// inotifyReadLoop polls fd with a 100ms timeout so stopChannel is
// checked regularly, and closes fd on exit.
func inotifyReadLoop(fd int, targetFilename string, wake chan<- struct{}, stopChannel <-chan struct{}) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-stopChannel:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		if eventsMention(buffer[:bytesRead], targetFilename) {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

// eventsMention reports whether any inotify_event in buffer names
// targetFilename.
func eventsMention(buffer []byte, targetFilename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		if nameLength > 0 {
			name := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if end := indexNull(name); end >= 0 {
				name = name[:end]
			}
			if string(name) == targetFilename {
				return true
			}
		}
		offset += eventSize
	}
	return false
}

func indexNull(data []byte) int {
	for i, b := range data {
		if b == 0 {
			return i
		}
	}
	return -1
}
