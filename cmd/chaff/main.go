// Package main provides the entry point for the chaff decoy file generator.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
