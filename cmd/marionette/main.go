package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/xkilldash9x/marionette/cmd"
	"github.com/xkilldash9x/marionette/internal/observability"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger := observability.GetLogger(); logger != nil {
				logger.Error(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
				observability.Sync()
			} else {
				fmt.Fprintf(os.Stderr, "panic: %v\n%s", r, debug.Stack())
			}
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
