package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gpcm/card"
	"gpcm/output"
)

var (
	version = "1.0.0"

	// Global flags
	readerIndex int
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "gpcm",
	Short: "GlobalPlatform content-management agent",
	Long: `gpcm v` + version + `
Off-card GlobalPlatform content-management agent for Java Card-based UICC/eSE.

This tool supports:
  - Secure Channel mutual authentication (SCP02/SCP03, auto-detected)
  - LOAD/INSTALL/DELETE of CAP packages and applet instances
  - GET STATUS registry listing
  - ARA-M access-rule provisioning
  - Batch provisioning from a job config file (gp apply)`,
	Version: version,
}

func init() {
	// Persistent flags available for all subcommands
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", -1,
		"Reader index (use 'gpcm gp list' with multiple readers attached to see indices)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Suppress progress and warning messages (tables are still printed; no JSON is emitted)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// connectAndPrepareReader connects to the reader and performs a reset to ensure clean
// card state. GlobalPlatform operations authenticate their own Secure Channel session
// (buildAgent/contentmgr.Authenticate) rather than relying on any prior PIN/key verify here.
func connectAndPrepareReader() (*card.Reader, error) {
	// Auto-select reader if only one available and none specified
	if readerIndex < 0 {
		readers, err := card.ListReaders()
		if err != nil {
			return nil, fmt.Errorf("failed to list readers: %w", err)
		}
		if len(readers) == 0 {
			return nil, fmt.Errorf("no smart card readers found")
		}
		if len(readers) == 1 {
			readerIndex = 0
			if !outputJSON {
				output.PrintSuccess(fmt.Sprintf("Auto-selected reader: %s", readers[0]))
			}
		} else {
			output.PrintReaderList(readers)
			return nil, fmt.Errorf("multiple readers found, use -r <index> to select one")
		}
	}

	// Connect to reader
	reader, err := card.Connect(readerIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Perform warm reset to ensure clean card state
	if err := reader.Reconnect(false); err != nil {
		// Warm reset failed, try cold reset
		if err := reader.Reconnect(true); err != nil {
			// If both fail, just continue - some readers don't support reset
			if !outputJSON {
				output.PrintWarning(fmt.Sprintf("Card reset failed: %v (continuing anyway)", err))
			}
		}
	}

	if !outputJSON {
		output.PrintReaderInfo(reader.Name(), reader.ATRHex())
	}

	return reader, nil
}

