// Package main is the entry point for the authctl command
package main

import (
	"os"

	"github.com/giantswarm/auth-framework/cmd/authctl/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
