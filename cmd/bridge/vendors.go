package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/omnibridge/omnibridge/internal/db"
	"github.com/omnibridge/omnibridge/internal/logger"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

func newVendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Manage vendor tenants",
	}
	cmd.AddCommand(newVendorsListCmd())
	cmd.AddCommand(newVendorsAddCmd())
	cmd.AddCommand(newVendorsResolveCmd())
	cmd.AddCommand(newVendorsDeactivateCmd())
	return cmd
}

func withVendorStore(run func(ctx context.Context, store *vendor.PGStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	return run(ctx, vendor.NewPGStore(pool))
}

func newVendorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVendorStore(func(ctx context.Context, store *vendor.PGStore) error {
				vendors, err := store.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPHONE\tAGENT\tINBOX\tINSTANCE\tACTIVE")
				for _, v := range vendors {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%t\n",
						v.ID, v.Name, v.Phone, v.AgentID, v.InboxIdentifier, v.InstanceID, v.Active)
				}
				return w.Flush()
			})
		},
	}
}

func newVendorsAddCmd() *cobra.Command {
	var params vendor.CreateParams
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVendorStore(func(ctx context.Context, store *vendor.PGStore) error {
				v, err := store.Create(ctx, params)
				if err != nil {
					return err
				}
				fmt.Printf("created vendor %s (%s)\n", v.ID, v.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "Vendor display name")
	cmd.Flags().StringVar(&params.Phone, "phone", "", "Vendor phone number")
	cmd.Flags().Int64Var(&params.AgentID, "agent-id", 0, "Desk agent id")
	cmd.Flags().StringVar(&params.InboxIdentifier, "inbox", "", "Desk inbox identifier")
	cmd.Flags().StringVar(&params.InstanceID, "instance-id", "", "Gateway instance id")
	cmd.Flags().StringVar(&params.InstanceToken, "instance-token", "", "Gateway instance token")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("inbox")
	_ = cmd.MarkFlagRequired("instance-id")
	_ = cmd.MarkFlagRequired("instance-token")
	return cmd
}

func newVendorsResolveCmd() *cobra.Command {
	var (
		instanceID string
		agentID    int64
		inbox      string
		phone      string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the vendor owning an identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVendorStore(func(ctx context.Context, store *vendor.PGStore) error {
				directory := vendor.NewDirectory(logger.L, store)

				var (
					v   vendor.Vendor
					err error
				)
				switch {
				case instanceID != "":
					v, err = directory.ResolveByInstance(ctx, instanceID)
				case agentID != 0:
					v, err = directory.ResolveByAgent(ctx, agentID)
				case inbox != "":
					v, err = directory.ResolveByInbox(ctx, inbox)
				case phone != "":
					v, err = directory.ResolveByPhone(ctx, phone)
				default:
					return fmt.Errorf("one of --instance-id, --agent-id, --inbox, --phone is required")
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\tagent=%d\tinbox=%s\tinstance=%s\tactive=%t\n",
					v.ID, v.Name, v.AgentID, v.InboxIdentifier, v.InstanceID, v.Active)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "Gateway instance id")
	cmd.Flags().Int64Var(&agentID, "agent-id", 0, "Desk agent id")
	cmd.Flags().StringVar(&inbox, "inbox", "", "Desk inbox identifier")
	cmd.Flags().StringVar(&phone, "phone", "", "Vendor phone number")
	return cmd
}

func newVendorsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <vendor-id>",
		Short: "Deactivate a vendor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVendorStore(func(ctx context.Context, store *vendor.PGStore) error {
				if err := store.Deactivate(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deactivated vendor %s\n", args[0])
				return nil
			})
		},
	}
}
