package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llmsecrets/pkg/domain"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runTarget string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runTarget, "target", "", "DevTools target id (default: first page matching browser.targetURL)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to the chat page and intercept sends until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info, err := a.svc.AttachTarget(ctx, domain.TargetID(runTarget))
	if err != nil {
		return fmt.Errorf("附加页面: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Attached to %s (%s)\n", info.Title, info.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events := a.svc.SubscribeEvents()
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt := <-events:
				logEvent(a, evt)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "\nDetaching...")
		shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return a.svc.Close(shutdown)
	})
	return g.Wait()
}

func logEvent(a *app, evt domain.Event) {
	kv := []any{"type", evt.Type, "target", string(evt.Target)}
	if evt.TraceID != "" {
		kv = append(kv, "traceId", evt.TraceID)
	}
	if evt.Outcome != "" {
		kv = append(kv, "outcome", evt.Outcome)
	}
	if evt.Notice != nil {
		kv = append(kv, "notice", evt.Notice.Message)
	}
	if evt.Error != "" {
		kv = append(kv, "error", evt.Error)
	}
	a.log.Debug("拦截事件", kv...)
}
