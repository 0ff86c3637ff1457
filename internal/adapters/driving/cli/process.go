package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Inspect and manage running processes",
	Long: `Every ingestion run, query and tool call is tracked as a process
with a progress log. These commands list processes, follow their
events and request cancellation.`,
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all processes, newest first",
	RunE:  runProcessList,
}

var processShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a process and its event log",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessShow,
}

var processWatchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Follow a process's events until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessWatch,
}

var processCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Request cooperative cancellation of a process",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessCancel,
}

func init() {
	processCmd.AddCommand(processListCmd)
	processCmd.AddCommand(processShowCmd)
	processCmd.AddCommand(processWatchCmd)
	processCmd.AddCommand(processCancelCmd)
	rootCmd.AddCommand(processCmd)
}

func runProcessList(cmd *cobra.Command, _ []string) error {
	if err := requireService(processService, "process"); err != nil {
		return err
	}

	procs, err := processService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing processes: %w", err)
	}

	if len(procs) == 0 {
		cmd.Println("No processes.")
		return nil
	}

	for _, p := range procs {
		cmd.Printf("%s  %-7s %-10s %3d%%  %s\n",
			p.ID, p.Kind, p.State, p.Progress, p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runProcessShow(cmd *cobra.Command, args []string) error {
	if err := requireService(processService, "process"); err != nil {
		return err
	}

	proc, err := processService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting process: %w", err)
	}

	cmd.Printf("Process: %s\n", proc.ID)
	cmd.Printf("Kind:    %s\n", proc.Kind)
	cmd.Printf("State:   %s (%d%%)\n", proc.State, proc.Progress)
	cmd.Println()
	cmd.Println("Events:")
	for _, e := range proc.Events {
		cmd.Printf("  %3d  %s  %-10s %3d%%  %s\n",
			e.Seq, e.At.Format("15:04:05"), e.State, e.Progress, e.Message)
	}
	return nil
}

func runProcessWatch(cmd *cobra.Command, args []string) error {
	if err := requireService(processService, "process"); err != nil {
		return err
	}

	events, err := processService.Subscribe(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("subscribing to process: %w", err)
	}

	for e := range events {
		cmd.Printf("%3d  %-10s %3d%%  %s\n", e.Seq, e.State, e.Progress, e.Message)
	}
	return nil
}

func runProcessCancel(cmd *cobra.Command, args []string) error {
	if err := requireService(processService, "process"); err != nil {
		return err
	}

	if err := processService.Cancel(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("cancelling process: %w", err)
	}
	cmd.Printf("Cancellation requested for %s.\n", args[0])
	return nil
}
