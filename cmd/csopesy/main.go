// Command csopesy boots the scheduler core, the paged memory manager,
// and the process registry behind three cobra subcommands: run, create,
// and dump-backing-store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := SetupCommands().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
