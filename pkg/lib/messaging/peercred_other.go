//go:build !linux

package messaging

import (
	"fmt"
	"net"
	"runtime"
)

func peerCredentials(net.Conn) (Credentials, error) {
	return Credentials{}, fmt.Errorf("%w on %s", ErrPeerCredentialsUnsupported, runtime.GOOS)
}
