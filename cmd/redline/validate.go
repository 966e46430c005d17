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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianRedline/pkg/ux"
	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var semantic bool
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a document command against the command schema",
		Long: `validate reads one JSON document command from a file, or from stdin when
the argument is "-" or missing, and reports whether it is well formed.
With --semantic the command is also reviewed by the language model.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := readCommandArg(cmd, args)
			printer := ux.NewPrinter(cmd.OutOrStdout())
			if err != nil {
				printer.Status(ux.IconError, "schema", err.Error())
				return err
			}
			printer.Status(ux.IconSuccess, "schema", fmt.Sprintf("%s at %s", parsed.Action, parsed.Location.Type))
			if !semantic {
				return nil
			}

			svc, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			verdict, err := svc.Reasoner.ValidateCommand(cmd.Context(), parsed)
			if err != nil {
				return fmt.Errorf("semantic validation: %w", err)
			}
			for _, s := range verdict.Suggestions {
				printer.Status(ux.IconWarning, "suggestion", s)
			}
			if !verdict.IsValid {
				printer.Status(ux.IconError, "semantic", strings.Join(verdict.Issues, "; "))
				return errors.New("command rejected: " + strings.Join(verdict.Issues, ", "))
			}
			printer.Status(ux.IconSuccess, "semantic", "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&semantic, "semantic", false, "also review the command with the language model")
	return cmd
}

// readCommandArg parses the command named by args, reading stdin for "-"
// or no argument.
func readCommandArg(cmd *cobra.Command, args []string) (commands.Command, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return commands.Command{}, fmt.Errorf("read command: %w", err)
	}
	return commands.Parse(data)
}
