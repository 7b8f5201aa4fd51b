package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camcore/internal/logging"
	"github.com/smazurov/camcore/internal/nats"
)

const defaultNATSURL = "nats://127.0.0.1:4222"

// natsFlags are the connection flags shared by call and watch. The token
// falls back to CAMCORE_NATS_TOKEN, the variable the server reads.
type natsFlags struct {
	url   string
	token string
}

func (f *natsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", defaultNATSURL, "NATS server URL")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("CAMCORE_NATS_TOKEN"), "NATS auth token")
}

func (f *natsFlags) connect(module string) (*nats.CommandClient, error) {
	client := nats.NewCommandClient(f.url, logging.GetLogger(module), nats.WithToken(f.token))
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", f.url, err)
	}
	return client, nil
}

// CreateCallCmd creates the call command.
func CreateCallCmd() *cobra.Command {
	var conn natsFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call [method] [key=value...]",
		Short: "Run a camera operation on a running camcore",
		Long: `Sends one command over the NATS command channel and prints the result as JSON. ` +
			`Values are decoded as JSON when possible, so zoom=2.5 is a number and sensor=BACK a string.`,
		Example: `  camcore call checkPermissions
  camcore call init sensor=BACK
  camcore call takePhoto path=/tmp/a.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			callArgs, err := ParseCallArgs(args[1:])
			if err != nil {
				return err
			}

			client, err := conn.connect("call")
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := client.Call(ctx, args[0], callArgs)
			if err != nil {
				return err
			}
			if len(result) == 0 {
				result = json.RawMessage("null")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return nil
		},
	}

	conn.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time to wait for the reply")

	return cmd
}

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var conn natsFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print camera events from a running camcore",
		Long:  `Subscribes to camcore.events.> and prints one JSON line per event until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			client, err := conn.connect("watch")
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			unsubscribe, err := client.SubscribeEvents(func(ev nats.EventMessage) {
				fmt.Fprintf(out, "%s %s\n", ev.Name, string(ev.Data))
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	conn.register(cmd)

	return cmd
}

// ParseCallArgs turns key=value pairs into named arguments. A value that is
// valid JSON is decoded; anything else is kept as a string.
func ParseCallArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, want key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		args[key] = value
	}
	return args, nil
}
