// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"errors"

	"github.com/spf13/cobra"

	capture_app "github.com/rapidaai/motioncam/api/capture-api/app"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and the output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if !capture_app.PrintChecks(cmd.OutOrStdout(), capture_app.NewDoctor().Run(cfg)) {
				return errors.New("some prerequisites are missing")
			}
			return nil
		},
	}
}
