//go:build !linux
// +build !linux

package link

import "syscall"

func socketControl(int) func(network, address string, c syscall.RawConn) error { return nil }
