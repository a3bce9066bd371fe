package main

import (
	"os"

	"github.com/openthread-go/netdata/cmd"
)

func main() {
	if err := cmd.CmdNetd.Execute(); err != nil {
		os.Exit(1)
	}
}
