package main

import (
	"fmt"
	"os"

	cli "github.com/LambertClark/multi-cloud-sre-agent/cmd/sreagent"
)

func main() {
	if err := cli.SetupRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
