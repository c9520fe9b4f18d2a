package main

import (
	"errors"
	"os"

	"iacsift/cmd"
	"iacsift/cmd/scan"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, scan.ErrRiskyResources) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
