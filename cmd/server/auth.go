package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

// sameUserOnly lets only processes of the user running the server send messages.
func sameUserOnly(log *logger.Logger) messaging.PeerCheck {
	return ownerCheck(uint32(os.Getuid()), log)
}

func ownerCheck(owner uint32, log *logger.Logger) messaging.PeerCheck {
	return func(peer messaging.Credentials) error {
		if peer.UID != owner {
			log.Warn("peer is not the owner of the packager",
				zap.Uint32("peer_uid", peer.UID),
				zap.Int32("peer_pid", peer.PID))
			return fmt.Errorf("only the owner (uid %d) can control the packager, peer uid is %d", owner, peer.UID)
		}
		return nil
	}
}
