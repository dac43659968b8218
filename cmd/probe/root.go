package probe

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/cmd/util"
	"github.com/ValentinKolb/xtrl/lib/trl"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"runtime"
)

var (
	display *trl.Display

	// ProbeCommands represents the probe command group
	ProbeCommands = &cobra.Command{
		Use:   "probe",
		Short: "Issue requests against a display server",
		Long: `Issue requests against a display server and report replies, events and errors.

Without --handle every protocol error is fatal: it is printed with all of its
fields and the command exits with status 1.`,
		PersistentPreRunE:  setupDisplay,
		PersistentPostRunE: teardownDisplay,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common client flags to the probe command
	util.SetupClientFlags(ProbeCommands)

	key := "break"
	ProbeCommands.PersistentFlags().Bool(key, false, util.WrapString("In strict mode, trap into the debugger after a request failed"))

	key = "handle"
	ProbeCommands.PersistentFlags().Bool(key, false, util.WrapString("Install an error handler that prints errors instead of exiting"))

	key = "metrics"
	ProbeCommands.PersistentFlags().Bool(key, false, util.WrapString("Print the client metrics after the command"))

	// Add subcommands
	ProbeCommands.AddCommand(createCmd)
	ProbeCommands.AddCommand(mapCmd)
	ProbeCommands.AddCommand(unmapCmd)
	ProbeCommands.AddCommand(moveCmd)
	ProbeCommands.AddCommand(siblingCmd)
	ProbeCommands.AddCommand(geometryCmd)
	ProbeCommands.AddCommand(attrsCmd)
	ProbeCommands.AddCommand(atomCmd)
	ProbeCommands.AddCommand(killCmd)
	ProbeCommands.AddCommand(eventsCmd)
	ProbeCommands.AddCommand(benchCmd)
}

// setupDisplay opens the display used by the subcommand
func setupDisplay(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	d, err := openDisplay(config)
	if err != nil {
		return err
	}
	display = d

	if viper.GetBool("break") {
		display.SetBreakpoint(runtime.Breakpoint)
	}
	if viper.GetBool("handle") {
		display.SetErrorHandler(printError)
	}
	return nil
}

// openDisplay connects a new display with the given configuration
func openDisplay(config *common.ClientConfig) (*trl.Display, error) {
	conn, err := util.GetConnection()
	if err != nil {
		return nil, err
	}
	return trl.OpenDisplay(*config, conn)
}

// teardownDisplay dispatches errors still in the event queue and closes the display
func teardownDisplay(_ *cobra.Command, _ []string) error {
	if display == nil {
		return nil
	}
	defer display.Close()

	if err := finish(); err != nil {
		return err
	}

	if viper.GetBool("metrics") {
		fmt.Println()
		display.WriteMetrics(os.Stdout)
	}
	return nil
}

// finish waits until the server processed every request and handles the
// events that arrived meanwhile
func finish() error {
	if err := display.Sync(); err != nil {
		return err
	}
	for ev := display.PollForEvent(); ev != nil; ev = display.PollForEvent() {
		printEvent(ev)
		display.HandleEvent(ev)
	}
	return nil
}

// printError is the error handler installed with --handle
func printError(_ *trl.Display, e *common.GenericError) {
	fmt.Printf("error: %s\n", e.Describe())
}

func printEvent(ev *trl.Event) {
	switch {
	case ev.Err != nil && ev.Synthetic:
		fmt.Printf("event %-16s seq %-6d %s (already reported)\n", ev.Code, ev.Sequence, ev.Err.ErrorCode)
	case ev.Err != nil:
		fmt.Printf("event %-16s seq %-6d %s\n", ev.Code, ev.Sequence, ev.Err.ErrorCode)
	case ev.Code == common.EventConfigureNotify:
		var n common.ConfigureNotify
		if err := n.Decode(ev.Body); err != nil {
			fmt.Printf("event %-16s seq %-6d window 0x%08x (malformed body)\n", ev.Code, ev.Sequence, ev.Window)
			return
		}
		fmt.Printf("event %-16s seq %-6d window 0x%08x %dx%d%+d%+d above 0x%08x\n",
			ev.Code, ev.Sequence, ev.Window, n.Width, n.Height, n.X, n.Y, n.AboveSibling)
	default:
		fmt.Printf("event %-16s seq %-6d window 0x%08x\n", ev.Code, ev.Sequence, ev.Window)
	}
}
