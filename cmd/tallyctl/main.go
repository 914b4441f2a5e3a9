// Command tallyctl operates a rating ledger snapshot: it prints problem
// statistics, rebuilds aggregates, imports legacy exports, clears a user's
// votes and watches the snapshot for changes from other processes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
