// Command allowancesim drives an in-process allowance engine the way a
// point-of-sale terminal would: a delegate pays an escrow until a guard trips.
package main

import (
	"os"

	"github.com/xraph/allowance/cmd/allowancesim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
