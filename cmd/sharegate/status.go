// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sharegate/sharegate/internal/control"
)

// ProcessStatus holds the status information for a process.
type ProcessStatus struct {
	Component string `json:"component"`
	Addr      string `json:"addr"`
	Running   bool   `json:"running"`
	Health    string `json:"health,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running Sharegate process",
		Long: `Query the gRPC health control server of a running Sharegate process.
The address defaults to control_addr from the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.addr == "" {
				loaded, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				cfg.addr = loaded.ControlAddr
			}
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "control server address (default: control_addr from config)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "probe timeout")

	return cmd
}

// runStatus executes the status command. An unreachable process is
// reported, not returned as an error.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.timeout)
	defer cancel()

	status := queryProcessStatus(ctx, cfg.addr)

	var output string
	if cfg.jsonOutput {
		var err error
		output, err = formatStatusJSON(status)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryProcessStatus probes the control server at addr.
func queryProcessStatus(ctx context.Context, addr string) ProcessStatus {
	status := ProcessStatus{Component: serviceName, Addr: addr}

	serving, err := control.Probe(ctx, addr, "")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}

	status.Running = true
	status.Health = strings.ToLower(serving.String())
	if serving != healthpb.HealthCheckResponse_SERVING {
		status.Error = "dependencies unavailable"
	}
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ProcessStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROCESS\tSTATUS\tHEALTH\tADDR")
	_, _ = fmt.Fprintln(w, "-------\t------\t------\t----")

	if status.Running {
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\t%s\n", status.Component, status.Health, status.Addr)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t%s\n", status.Component, reason)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}
