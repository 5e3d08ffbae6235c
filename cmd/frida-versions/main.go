package main

import (
	"fmt"
	"os"

	"github.com/frida-mgr/versions/cmd/frida-versions/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
