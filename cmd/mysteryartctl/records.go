package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

const adminTokenHeader = "X-Admin-Token"

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect fulfillment records through the admin API",
	}

	cmd.PersistentFlags().String("server", "http://localhost:8080", "Service base URL")
	cmd.PersistentFlags().String("token", "", "Admin token (defaults to ADMIN_TOKEN)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get [order-id]",
		Short: "Show one fulfillment record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminCall(cmd, resty.MethodGet, "/api/fulfillments/"+args[0], nil)
		},
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List fulfillment records, failed ones by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			pageToken, _ := cmd.Flags().GetString("page-token")
			query := map[string]string{
				"status":    status,
				"page_size": strconv.Itoa(limit),
			}
			if pageToken != "" {
				query["page_token"] = pageToken
			}
			return adminCall(cmd, resty.MethodGet, "/api/fulfillments", query)
		},
	}
	list.Flags().String("status", "failed", "Record status")
	list.Flags().IntP("limit", "n", 50, "Page size")
	list.Flags().String("page-token", "", "Token from a previous page")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "redrive [order-id]",
		Short: "Run one more fulfillment attempt for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminCall(cmd, resty.MethodPost, "/api/fulfillments/"+args[0]+"/redrive", nil)
		},
	})

	return cmd
}

func adminCall(cmd *cobra.Command, method, path string, query map[string]string) error {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("ADMIN_TOKEN")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(server, "/")).
		SetTimeout(60*time.Second).
		SetHeader(adminTokenHeader, token)

	resp, err := client.R().
		SetContext(cmd.Context()).
		SetQueryParams(query).
		Execute(method, path)
	if err != nil {
		return err
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		body = resp.String()
	}
	if err := printJSON(cmd.OutOrStdout(), body); err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("admin api returned %s", resp.Status())
	}
	return nil
}
