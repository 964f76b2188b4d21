// Command benor-node runs a single member of a Ben-Or consensus group,
// exposing its control surface over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asyncconsensus/benor/internal/api"
	"github.com/asyncconsensus/benor/internal/consensus"
	"github.com/asyncconsensus/benor/internal/metrics"
	"github.com/asyncconsensus/benor/internal/sim"
	"github.com/asyncconsensus/benor/internal/transport"
)

func main() {
	ctx := quitSignalContext()
	if err := newRootCmd().ExecuteContext(ctx); err != nil && !cancelledByQuitSignal(ctx) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var errQuitSignal = errors.New("received quit signal")

// quitSignalContext returns a context cancelled, with cause errQuitSignal,
// as soon as the process receives SIGINT or SIGTERM.
func quitSignalContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		sig := <-sigChan
		cancel(fmt.Errorf("%s: %w", sig, errQuitSignal))
	}()

	return ctx
}

func cancelledByQuitSignal(ctx context.Context) bool {
	err := context.Cause(ctx)
	return err != nil && errors.Is(err, errQuitSignal)
}

type runFlags struct {
	nodeID       int
	n            int
	f            int
	initialValue int
	faulty       bool
	basePort     int
	peers        []string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "benor-node",
		Short: "Runs one member of a Ben-Or binary Byzantine agreement group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.nodeID, "id", 0, "this node's id within the group, 0-indexed")
	cmd.Flags().IntVar(&flags.n, "n", 1, "total number of members in the group")
	cmd.Flags().IntVar(&flags.f, "f", 0, "maximum number of faults the group tolerates")
	cmd.Flags().IntVar(&flags.initialValue, "initial", 0, "this node's initial binary value (0 or 1)")
	cmd.Flags().BoolVar(&flags.faulty, "faulty", false, "run this node as a faulty (crash-stopped) member")
	cmd.Flags().IntVar(&flags.basePort, "base-port", 9000, "HTTP port offset; this node listens on base-port+id")
	cmd.Flags().StringSliceVar(&flags.peers, "peer", nil, "peer base URL, repeatable; one per group member in id order")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "logrus log level")

	cmd.AddCommand(newSimCmd())

	return cmd
}

func run(ctx context.Context, flags *runFlags) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(flags.logLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)
	entry := log.WithFields(logrus.Fields{
		"node_id":  flags.nodeID,
		"instance": uuid.NewString(),
	})

	if flags.initialValue != 0 && flags.initialValue != 1 {
		return fmt.Errorf("--initial must be 0 or 1, got %d", flags.initialValue)
	}

	var node consensus.Participant
	counters := metrics.New()

	if flags.faulty {
		node = consensus.NewFaultyNode()
	} else {
		peers := make([]transport.Peer, 0, len(flags.peers))
		for i, base := range flags.peers {
			peers = append(peers, transport.Peer{ID: i, BaseURL: base})
		}
		adapter := transport.New(flags.nodeID, peers, nil, entry)

		initial := consensus.Zero
		if flags.initialValue == 1 {
			initial = consensus.One
		}
		node = consensus.NewDriver(consensus.Config{
			ID:        flags.nodeID,
			N:         flags.n,
			F:         flags.f,
			Initial:   initial,
			Transport: adapter,
			Log:       entry,
			Metrics:   counters,
		})
	}

	server := api.New(node, flags.n, counters, entry)
	addr := fmt.Sprintf(":%d", flags.basePort+flags.nodeID)
	httpServer := &http.Server{Addr: addr, Handler: server}

	errCh := make(chan error, 1)
	go func() {
		entry.WithField("addr", addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		entry.Info("shutting down")
		node.Stop()
		shutdownErr := httpServer.Shutdown(context.Background())
		<-errCh
		return shutdownErr
	case err := <-errCh:
		return err
	}
}

// newSimCmd runs a whole group in-process via internal/sim, for manual
// experimentation without standing up real HTTP servers.
func newSimCmd() *cobra.Command {
	var values []int
	var faultCount int

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Runs a consensus group in-process and prints the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(values) == 0 {
				return fmt.Errorf("--value must be given at least once")
			}
			members := make([]sim.MemberConfig, len(values))
			for i, v := range values {
				mc := sim.MemberConfig{Faulty: i < faultCount}
				if v == 1 {
					mc.Initial = consensus.One
				}
				members[i] = mc
			}

			log := logrus.New()
			c, err := sim.NewCluster(members, faultCount, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Stop()

			ticker := time.NewTicker(10 * time.Millisecond)
			defer ticker.Stop()
			for {
				if done, agreed := c.Decided(); done {
					fmt.Printf("decided, agreed=%v\n", agreed)
					for i, s := range c.States() {
						switch {
						case s.X == nil:
							fmt.Printf("node %d: faulty\n", i)
						default:
							fmt.Printf("node %d: x=%s k=%d\n", i, s.X, *s.K)
						}
					}
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().IntSliceVar(&values, "value", nil, "initial value for a node, repeatable in id order")
	cmd.Flags().IntVar(&faultCount, "faults", 0, "number of leading members to run as faulty")
	return cmd
}
