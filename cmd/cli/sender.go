package main

import (
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

func (o *cliOptions) socketPath() string {
	if o.cfg.IPC.SocketPath != "" {
		return o.cfg.IPC.SocketPath
	}
	return messaging.PipePath(o.cfg.Workspace.Path)
}

func (o *cliOptions) sender() *messaging.Sender {
	return messaging.NewSender(o.socketPath(), o.logger)
}
