// kestrafs presents a Kestra namespace as a local directory tree.
//
// Sub-commands:
//
//	kestrafs mount <dir>              Mount a namespace with FUSE
//	kestrafs ls|stat|cat|put|rm|mkdir|mv <path>
//	kestrafs search <query>           Search files and flows
//	kestrafs start                    Print README.md or the getting-started guide
//	kestrafs schema download|show     Manage the cached flow schema
//	kestrafs docs <flow.yml>          Show documentation for the task at a position
//	kestrafs config set-server|set-namespace
//	kestrafs status | logout
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
