// Stockctl is the operator CLI for stockline. It resolves transcripts
// locally or against a running daemon, replays recorded requests and prints
// the catalog.
package main

import (
	"log"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
