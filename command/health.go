package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	pkgrpc "discord-pk-bot/grpc"
)

func NewHealthCommand() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running bot's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := pkgrpc.NewClient(addr, timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := c.Check(cmd.Context(), service)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", service, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "Address of the health endpoint")
	cmd.Flags().StringVar(&service, "service", pkgrpc.ReconcilerService, "Service to check, empty for the whole process")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for an answer")

	return cmd
}
