package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every attendance record",
	Long: `Delete every attendance record. The gallery and dataset are not touched.

Example:
  facectl clear --yes`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runClear(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") && !confirmAction("Delete all attendance records? [y/N] ") {
		fmt.Println("Aborted")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.Attendance.Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d records\n", removed)
	return nil
}
