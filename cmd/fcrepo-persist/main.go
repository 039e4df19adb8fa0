// Command fcrepo-persist runs the standalone persistence core server and
// its operator tooling (init, config, session inspection).
package main

import (
	"fmt"
	"os"

	"github.com/fcrepo/ocfl-persistence/cmd/fcrepo-persist/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
