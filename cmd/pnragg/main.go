// Pnragg is a read-only booking aggregation service: given a PNR it fans out
// to the trip, baggage and ticket sources in parallel, degrades gracefully
// when a source is down, and streams fetch notifications to WebSocket
// observers.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/pnragg.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("pnragg", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
