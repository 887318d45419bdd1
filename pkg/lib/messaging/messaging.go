// Package messaging carries control messages between packager-runner processes.
//
// Every message travels on its own connection to a per-workspace unix socket as a
// single JSON frame, {"message":"NAME","args":[...]}. The sender closes its write
// side after the frame and nothing is sent back.
package messaging

import (
	"os"
	"path/filepath"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
)

// Message names a control message.
type Message string

const (
	StartPackager      Message = "START_PACKAGER"
	StopPackager       Message = "STOP_PACKAGER"
	RestartPackager    Message = "RESTART_PACKAGER"
	PrewarmBundleCache Message = "PREWARM_BUNDLE_CACHE"
)

// Frame is the wire shape of one message.
type Frame struct {
	Message Message `json:"message"`
	Args    []any   `json:"args,omitempty"`
}

// maxFrameSize bounds how much a listener buffers from one connection.
const maxFrameSize = 1 << 20

// PipePath returns the control socket of workspace. It is stable for a workspace
// and differs between workspaces, so independent instances never share a socket.
func PipePath(workspace string) string {
	return filepath.Join(os.TempDir(), "packager-runner-"+lib.WorkspaceID(workspace)+".sock")
}
