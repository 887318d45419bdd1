package lib

import (
	"path/filepath"

	"github.com/google/uuid"
)

// workspaceNamespace scopes the name-based workspace identifiers.
var workspaceNamespace = uuid.MustParse("5b0c7a4e-6f43-4d8e-9a53-1f0c2f1f8a3d")

// NewID generates a UUID version 4 string (RFC 4122)
func NewID() string {
	return uuid.NewString()
}

// WorkspaceID returns a stable identifier for a workspace directory.
// The same directory always yields the same id, different directories never collide in practice.
func WorkspaceID(workspace string) string {
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}
	return uuid.NewSHA1(workspaceNamespace, []byte(filepath.Clean(workspace))).String()
}
