// Command initz replays recorded startup notifications and prints the
// initialization report.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
