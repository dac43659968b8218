package probe

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/lib/trl"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/spf13/cobra"
	"strconv"
	"strings"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [width] [height]",
		Short: "Creates and maps a top level window and prints its geometry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, err := parseUint16(args[0])
			if err != nil {
				return fmt.Errorf("width must be a number: %w", err)
			}
			height, err := parseUint16(args[1])
			if err != nil {
				return fmt.Errorf("height must be a number: %w", err)
			}

			win, _ := display.CreateWindow(common.Root, 0, 0, width, height, 0)
			display.MapWindow(win)
			fmt.Printf("created window 0x%08x\n", win)

			return printGeometry(win)
		},
	}
	mapCmd = &cobra.Command{
		Use:   "map [window]",
		Short: "Maps a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			c := display.MapWindow(win)
			fmt.Printf("sent MapWindow (sequence %d)\n", c.Sequence)
			return nil
		},
	}
	unmapCmd = &cobra.Command{
		Use:   "unmap [window]",
		Short: "Unmaps a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			c := display.UnmapWindow(win)
			fmt.Printf("sent UnmapWindow (sequence %d)\n", c.Sequence)
			return nil
		},
	}
	moveCmd = &cobra.Command{
		Use:   "move [window] [x] [y]",
		Short: "Moves a window",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			x, err := strconv.ParseInt(args[1], 10, 16)
			if err != nil {
				return fmt.Errorf("x must be a number: %w", err)
			}
			y, err := strconv.ParseInt(args[2], 10, 16)
			if err != nil {
				return fmt.Errorf("y must be a number: %w", err)
			}
			c := display.MoveWindow(win, int16(x), int16(y))
			fmt.Printf("sent ConfigureWindow (sequence %d)\n", c.Sequence)
			return nil
		},
	}
	siblingCmd = &cobra.Command{
		Use:   "sibling",
		Short: "Sets a sibling without a stack mode, which the server rejects with BadMatch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _ := display.CreateWindow(common.Root, 0, 0, 100, 100, 0)
			b, _ := display.CreateWindow(common.Root, 50, 50, 100, 100, 0)
			c := display.SetSibling(a, b)
			fmt.Printf("sent ConfigureWindow with sibling 0x%08x for 0x%08x (sequence %d)\n", b, a, c.Sequence)
			return nil
		},
	}
	geometryCmd = &cobra.Command{
		Use:   "geometry [window]",
		Short: "Prints the geometry of a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			return printGeometry(win)
		},
	}
	attrsCmd = &cobra.Command{
		Use:   "attrs [window]",
		Short: "Prints the attributes of a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			attrs, err := display.GetWindowAttributesReply(display.GetWindowAttributes(win))
			if err != nil {
				return err
			}
			state := "unmapped"
			if attrs.MapState == common.MapStateViewable {
				state = "viewable"
			}
			fmt.Printf("window 0x%08x: %s, event mask 0x%08x\n", win, state, attrs.EventMask)
			return nil
		},
	}
	atomOnlyIfExists bool
	atomCmd          = &cobra.Command{
		Use:   "atom [name...]",
		Short: "Interns atoms, all requests are sent before the first reply is read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cookies := make([]trl.Cookie, len(args))
			for i, name := range args {
				cookies[i] = display.InternAtom(atomOnlyIfExists, name)
			}
			for i, c := range cookies {
				atom, err := display.InternAtomReply(c)
				if err != nil {
					return err
				}
				fmt.Printf("%-24s %d\n", args[i], atom)
			}
			return nil
		},
	}
	killCmd = &cobra.Command{
		Use:   "kill [resource]",
		Short: "Destroys the client that created a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, err := parseWindow(args[0])
			if err != nil {
				return err
			}
			c := display.KillClient(resource)
			fmt.Printf("sent KillClient (sequence %d)\n", c.Sequence)
			return nil
		},
	}
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Creates a window, selects structure events and prints what a few requests cause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			win, _ := display.CreateWindow(common.Root, 10, 10, 200, 100, 1)
			other, _ := display.CreateWindow(common.Root, 0, 0, 50, 50, 0)
			display.SelectInput(win, common.EventMaskStructureNotify)
			display.MapWindow(win)
			display.MoveResizeWindow(win, 20, 30, 400, 300)
			display.RaiseWindow(win)
			display.LowerWindow(win)
			display.UnmapWindow(win)
			display.DestroyWindow(win)
			display.DestroyWindow(other)
			// the events are printed by the teardown
			return nil
		},
	}
)

func init() {
	atomCmd.Flags().BoolVar(&atomOnlyIfExists, "only-if-exists", false, "Do not create atoms for unknown names")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func printGeometry(win uint32) error {
	g, err := display.GetGeometryReply(display.GetGeometry(win))
	if err != nil {
		return err
	}
	fmt.Printf("window 0x%08x: %dx%d%+d%+d border %d\n", win, g.Width, g.Height, g.X, g.Y, g.BorderWidth)
	return nil
}

// parseWindow accepts "root", decimal or 0x prefixed hexadecimal ids
func parseWindow(s string) (uint32, error) {
	if strings.EqualFold(s, "root") {
		return common.Root, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err
}
