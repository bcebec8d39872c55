package main

import (
	"os"

	"github.com/CJStryker/T2Tmud-telnet-client-2/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
