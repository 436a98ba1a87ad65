// Command gpcm is a GlobalPlatform content-management agent: it authenticates a Secure
// Channel session (SCP02/SCP03, auto-detected) against a card's Issuer Security Domain
// and drives LOAD/INSTALL/DELETE/GET STATUS content management, plus ARA-M rule
// provisioning and applet-presence verification.
package main

import (
	"gpcm/cmd"
)

func main() {
	cmd.Execute()
}
