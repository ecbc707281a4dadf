// Command waffleadmin holds operator tools for a Waffle group: sealing and
// opening the bootstrap blob, inspecting the week calendar and running a
// cleanup by hand.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
