package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
)

type statusRow struct {
	Workspace string
	Address   string
	State     lib.ServiceState
	Server    bool
}

func printStatusTable(w io.Writer, row statusRow) {
	server := "down"
	if row.Server {
		server = "up"
	}
	state := row.State.String()

	// Determine column widths
	idW := maxInt(36, len(row.Workspace))
	addrW := maxInt(7, len(row.Address))
	stateW := maxInt(7, len(state))
	serverW := maxInt(6, len(server))

	sep := fmt.Sprintf("+-%s-+-%s-+-%s-+-%s-+\n",
		strings.Repeat("-", idW), strings.Repeat("-", addrW), strings.Repeat("-", stateW), strings.Repeat("-", serverW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s | %s | %s |\n", pad("WORKSPACE", idW), pad("ADDRESS", addrW), pad("STATE", stateW), pad("SERVER", serverW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s | %s | %s |\n", pad(row.Workspace, idW), pad(row.Address, addrW), pad(state, stateW), pad(server, serverW))
	fmt.Fprint(w, sep)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
