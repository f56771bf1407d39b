package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"memberpass/internal/audit"
	"memberpass/internal/platform/kafka/consumer"
)

// tailHandler prints audit events as one line each, optionally filtered to
// one principal.
type tailHandler struct {
	out       io.Writer
	principal string
}

func (h tailHandler) Handle(_ context.Context, msg *consumer.Message) error {
	if h.principal != "" && string(msg.Key) != h.principal {
		return nil
	}
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// malformed records are skipped, not retried
		fmt.Fprintf(h.out, "skip offset %d: %v\n", msg.Offset, err)
		return nil
	}
	line := fmt.Sprintf("%s %-24s %s", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"), event.Action, event.Principal)
	if event.RequestID != "" {
		line += " request_id=" + event.RequestID
	}
	for k, v := range event.Attributes {
		line += fmt.Sprintf(" %s=%s", k, v)
	}
	fmt.Fprintln(h.out, line)
	return nil
}

func auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit stream",
	}
	cmd.AddCommand(auditTailCommand())
	return cmd
}

func auditTailCommand() *cobra.Command {
	var brokers, topic, group, principal string
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow audit events published to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := consumer.New(consumer.Config{
				Brokers:   brokers,
				Topics:    []string{topic},
				GroupID:   group,
				FromStart: fromStart,
			}, tailHandler{out: cmd.OutOrStdout(), principal: principal},
				slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", os.Getenv("KAFKA_BROKERS"), "comma separated broker list")
	cmd.Flags().StringVar(&topic, "topic", envOr("KAFKA_AUDIT_TOPIC", audit.DefaultTopic), "audit topic")
	cmd.Flags().StringVar(&group, "group", "", "consumer group; offsets are committed when set")
	cmd.Flags().StringVar(&principal, "principal", "", "only show events for this principal")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "read from the oldest retained offset")
	return cmd
}
