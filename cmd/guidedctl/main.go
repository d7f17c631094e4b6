// Command guidedctl inspects and maintains a guided-content deployment
// using the same environment configuration as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cctx := &commandContext{}
	cmd := newRootCommand(cctx)
	err := cmd.Execute()
	cctx.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
