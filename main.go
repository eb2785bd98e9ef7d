package main

import (
	"os"

	"github.com/jobcatcher/jobcatcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
