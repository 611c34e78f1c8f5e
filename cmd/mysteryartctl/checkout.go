package main

import (
	"context"
	"time"

	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	checkoutservice "github.com/smallbiznis/mysteryart/internal/checkout/service"
	"github.com/smallbiznis/mysteryart/internal/checkout/stripe"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	tierservice "github.com/smallbiznis/mysteryart/internal/tier/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func checkoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Build a checkout request for a tier, optionally creating the Stripe session",
		RunE: func(cmd *cobra.Command, args []string) error {
			tierID, _ := cmd.Flags().GetString("tier")
			tip, _ := cmd.Flags().GetInt64("tip")
			email, _ := cmd.Flags().GetString("email")
			create, _ := cmd.Flags().GetBool("create")

			cfg := config.Load()
			catalog, err := tierservice.Provide(cfg)
			if err != nil {
				return err
			}
			log := zap.NewNop()
			params := checkoutservice.Params{
				Config:  cfg,
				Log:     log,
				Catalog: catalog,
				Clock:   clock.SystemClock{},
			}
			if create {
				params.Sessions = stripe.NewSessionCreator(cfg, log)
			}
			svc := checkoutservice.New(params)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			req := checkoutdomain.BuildRequest{TierID: tierID, TipCents: tip, BuyerEmail: email}

			if !create {
				built, err := svc.Build(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), built)
			}

			resp, err := svc.Start(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringP("tier", "t", "discovery", "Tier id")
	cmd.Flags().Int64("tip", 0, "Tip in cents")
	cmd.Flags().StringP("email", "e", "", "Buyer email")
	cmd.Flags().Bool("create", false, "Create the hosted session with the configured Stripe key")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
