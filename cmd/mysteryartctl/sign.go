package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/checkout/metadata"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/payment/adapters/stripe"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Sign a webhook payload for local replay",
		Long: `Computes a Stripe-Signature header for a payload read from a file,
stdin ("-"), or a generated checkout.session.completed event (--order).
With --post the signed payload is delivered to the given webhook URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = config.Load().Stripe.WebhookSecret
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("webhook secret required (--secret or STRIPE_WEBHOOK_SECRET)")
			}

			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}

			header := stripe.SignatureHeaderValue(secret, payload, time.Now())
			postURL, _ := cmd.Flags().GetString("post")
			if postURL == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", stripe.SignatureHeader, header)
				return nil
			}

			resp, err := resty.New().
				SetTimeout(30*time.Second).
				R().
				SetContext(cmd.Context()).
				SetHeader("Content-Type", "application/json").
				SetHeader(stripe.SignatureHeader, header).
				SetBody(payload).
				Post(postURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode(), strings.TrimSpace(resp.String()))
			if resp.IsError() {
				return fmt.Errorf("webhook returned %s", resp.Status())
			}
			return nil
		},
	}

	cmd.Flags().String("secret", "", "Webhook signing secret (defaults to STRIPE_WEBHOOK_SECRET)")
	cmd.Flags().String("post", "", "Deliver the signed payload to this URL")
	cmd.Flags().String("order", "", "Generate a paid checkout.session.completed event for this order id")
	cmd.Flags().String("tier", "discovery", "Tier id for the generated event")
	cmd.Flags().Int64("price", 1000, "Tier price in cents for the generated event")
	cmd.Flags().Int64("tip", 0, "Tip in cents for the generated event")
	cmd.Flags().String("email", "buyer@example.com", "Buyer email for the generated event")

	return cmd
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	orderID, _ := cmd.Flags().GetString("order")
	if orderID != "" {
		tierID, _ := cmd.Flags().GetString("tier")
		price, _ := cmd.Flags().GetInt64("price")
		tip, _ := cmd.Flags().GetInt64("tip")
		email, _ := cmd.Flags().GetString("email")
		return sampleCompletedEvent(checkoutdomain.OrderIntent{
			OrderID:    orderID,
			TierID:     tierID,
			PriceCents: price,
			TipCents:   tip,
			BuyerEmail: email,
		}, time.Now())
	}

	if len(args) == 0 {
		return nil, errors.New("payload file or --order required")
	}
	if args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func sampleCompletedEvent(intent checkoutdomain.OrderIntent, now time.Time) ([]byte, error) {
	md, err := metadata.Encode(intent, false)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"id":      fmt.Sprintf("evt_local_%d", now.UnixNano()),
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": now.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_local_" + intent.OrderID,
				"object":              "checkout.session",
				"amount_total":        intent.TotalCents(),
				"currency":            "usd",
				"payment_status":      "paid",
				"client_reference_id": intent.OrderID,
				"customer_email":      intent.BuyerEmail,
				"metadata":            md,
			},
		},
	})
}
