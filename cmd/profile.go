package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boykhocnhe/microfourthirds/lens"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Validate and print the active lens profile",
	Long: `Load the lens profile named by --profile (or the canonical defaults),
validate it, and print the resolved payloads and timing.`,
	RunE: showProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func showProfile(cmd *cobra.Command, _ []string) error {
	prof, err := loadProfile()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:                %s\n", prof.Name)
	fmt.Fprintf(out, "command response:    0x%02x\n", prof.CommandResponse)
	fmt.Fprintf(out, "capability:          % x (checksum 0x%02x)\n",
		prof.Capability, lens.Checksum(prof.Capability))
	fmt.Fprintf(out, "identity:            % x (checksum 0x%02x)\n",
		prof.Identity, lens.Checksum(prof.Identity))
	fmt.Fprintf(out, "truncated identity:  % x\n", prof.TruncatedIdentity)
	fmt.Fprintf(out, "keep-alive:          %d bytes, enabled=%v\n",
		len(prof.KeepAlive), prof.KeepAliveEnabled)
	fmt.Fprintf(out, "settle delay:        %v\n", prof.SettleDelay)
	fmt.Fprintf(out, "wake pulse:          %v\n", prof.WakePulse)
	fmt.Fprintf(out, "idle pause:          %v\n", prof.IdlePause)
	fmt.Fprintf(out, "final ack hold:      %v\n", prof.FinalAckHold)

	return nil
}
