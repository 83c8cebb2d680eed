// Package main is the entry point for the tracker-probe application
package main

import "github.com/ethpandaops/tracker-probe/cmd"

func main() {
	cmd.Execute()
}
