package cmd

import (
	"gpcm/output"
)

// printError prints an error message using the output package
func printError(msg string) {
	output.PrintError(msg)
}

// printSuccess prints a success message using the output package
func printSuccess(msg string) {
	if !outputJSON {
		output.PrintSuccess(msg)
	}
}

// printWarning prints a warning message using the output package
func printWarning(msg string) {
	if !outputJSON {
		output.PrintWarning(msg)
	}
}

