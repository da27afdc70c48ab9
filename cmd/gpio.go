package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boykhocnhe/microfourthirds/gpiobus"
	"github.com/boykhocnhe/microfourthirds/lens"
	"github.com/boykhocnhe/microfourthirds/logger"
)

var gpioPins gpiobus.PinConfig

var gpioCmd = &cobra.Command{
	Use:   "gpio",
	Short: "Present the emulated lens on host GPIO pins",
	Long: `Attach the lens session to host GPIO pins and answer a real camera
body wired to them.

The session blocks on the body's signals with no timeout; an absent or
silent body simply leaves it waiting. Interrupt the process to stop
between negotiation steps.`,
	RunE: runGPIO,
}

func init() {
	gpioCmd.Flags().StringVar(&gpioPins.Power, "power-pin", "GPIO4", "Power sense pin")
	gpioCmd.Flags().StringVar(&gpioPins.BodyAck, "body-ack-pin", "GPIO17", "Body signal pin")
	gpioCmd.Flags().StringVar(&gpioPins.LensAck, "lens-ack-pin", "GPIO27", "Lens acknowledge pin")
	gpioCmd.Flags().StringVar(&gpioPins.Clock, "clock-pin", "GPIO11", "Bus clock pin")
	gpioCmd.Flags().StringVar(&gpioPins.Data, "data-pin", "GPIO10", "Shared data pin")
	rootCmd.AddCommand(gpioCmd)
}

func runGPIO(cmd *cobra.Command, _ []string) error {
	prof, err := loadProfile()
	if err != nil {
		return err
	}

	cfg, err := lens.NewSessionConfig(prof.Options()...)
	if err != nil {
		return err
	}

	bus, err := gpiobus.Open(gpioPins)
	if err != nil {
		return err
	}
	defer func() {
		if herr := bus.Halt(); herr != nil {
			logger.Warn("gpio teardown failed", "error", herr)
		}
	}()

	session, err := lens.NewSession(bus.Pins(), cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("lens attached, waiting for body power-on",
		"profile", prof.Name,
		"power", gpioPins.Power, "bodyAck", gpioPins.BodyAck,
		"lensAck", gpioPins.LensAck, "clock", gpioPins.Clock, "data", gpioPins.Data)

	err = session.Run(ctx)
	logger.Info("lens session ended",
		"completed", session.Completed(),
		"steps", session.Metrics().StepCount.Load(),
		"error", err)

	return nil
}
