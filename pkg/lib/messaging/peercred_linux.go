//go:build linux

package messaging

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func peerCredentials(conn net.Conn) (Credentials, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Credentials{}, fmt.Errorf("peer credentials need a unix connection, got %T", conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return Credentials{}, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Credentials{}, err
	}
	if credErr != nil {
		return Credentials{}, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}
	return Credentials{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
