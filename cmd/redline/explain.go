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
	"fmt"

	"github.com/spf13/cobra"
)

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [file|-]",
		Short: "Describe a document command in plain language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := readCommandArg(cmd, args)
			if err != nil {
				return err
			}

			svc, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			explanation, err := svc.Reasoner.ExplainCommand(cmd.Context(), parsed)
			if err != nil {
				return fmt.Errorf("explain command: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), explanation)
			return nil
		},
	}
}
