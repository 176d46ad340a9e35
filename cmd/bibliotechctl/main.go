// Command bibliotechctl runs maintenance tasks against the configured
// database: schema migration, catalog seeding, the lifecycle sweep,
// spreadsheet exports and SQLite backups.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
