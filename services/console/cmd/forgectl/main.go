package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"haforge/pkg/db"
	"haforge/services/playbook"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "forgectl",
		Short:         "Utility for managing the haforge provisioning console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newRenderCommand())
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if dsn == "" {
				dsn = os.Getenv("DB_DSN")
			}
			if dsn == "" {
				return errors.New("--dsn or DB_DSN is required")
			}

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			return db.Migrate(ctx, pool)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (defaults to DB_DSN)")
	return cmd
}

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render automation documents to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newRenderServerCommand())
	cmd.AddCommand(newRenderReplicaCommand())
	return cmd
}

func vmFlags(cmd *cobra.Command, in *playbook.VMInput) {
	cmd.Flags().StringVar(&in.Name, "name", "", "VM name")
	cmd.Flags().IntVar(&in.Memory, "memory", 2048, "VM memory in MiB")
	cmd.Flags().IntVar(&in.Cores, "cores", 2, "VM core count")
	cmd.Flags().StringVar(&in.User, "ci-user", "", "Cloud-init user")
	cmd.Flags().StringVar(&in.Password, "ci-password", "", "Cloud-init password")
	cmd.Flags().StringVar(&in.IPConfig, "ipconfig", "", "Cloud-init ipconfig0 string")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("ci-user")
	_ = cmd.MarkFlagRequired("ci-password")
	_ = cmd.MarkFlagRequired("ipconfig")
}

func newRenderServerCommand() *cobra.Command {
	var in playbook.VMInput

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Render a single-VM provisioning document",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := playbook.BuildProvision(in).Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	vmFlags(cmd, &in)
	return cmd
}

func newRenderReplicaCommand() *cobra.Command {
	var (
		in              playbook.VMInput
		primaryIPConfig string
	)

	cmd := &cobra.Command{
		Use:   "replica",
		Short: "Render a primary/replica replication document",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := playbook.NewReplicationPlan(primaryIPConfig, in.IPConfig, in.Name)
			if err != nil {
				return err
			}

			data, err := playbook.BuildReplica(in, plan).Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	vmFlags(cmd, &in)
	cmd.Flags().StringVar(&primaryIPConfig, "primary-ipconfig", "", "Primary's cloud-init ipconfig0 string")
	_ = cmd.MarkFlagRequired("primary-ipconfig")
	return cmd
}
