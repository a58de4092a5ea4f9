package main

import (
	"os"

	"github.com/railops/wagonmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
