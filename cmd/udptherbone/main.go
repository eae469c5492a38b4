// Command udptherbone serves and simulates the Etherbone over UDP over SLIP
// bridge.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/awygle/udptherbone/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
