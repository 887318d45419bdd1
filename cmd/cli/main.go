package main

import (
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/entrypoint"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

var version = "dev"

func main() {
	root := NewRootCmd()

	// the CLI is a worker of the server: fatal errors are logged and end it with exit code 1
	handler := entrypoint.NewHandler(true, logger.Default())
	_ = handler.RunApp("prc", version, root.Execute)
}
