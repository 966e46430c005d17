// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/AleutianRedline/services/redline"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clause submission and status HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVar(&a.flags.port, "port", 0, "HTTP port")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	shutdown, err := redline.InitTracer(ctx, a.cfg.Tracing, nil)
	if err != nil {
		return err
	}
	defer shutdown(context.WithoutCancel(ctx))

	svc, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run(ctx)
}
