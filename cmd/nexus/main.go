package main

import (
	"fmt"
	"os"

	"github.com/nexus-fleet/nexus/internal/logger"
)

func main() {
	log := logger.New(logger.Options{Level: "info", HumanReadable: true, Component: "nexus"})

	app := &AppContext{Logger: log}
	rootCmd := newRootCmd(app)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
