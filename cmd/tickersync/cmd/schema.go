package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wonny/tickersync/internal/infra/database/postgres"
	tickerrepo "github.com/wonny/tickersync/internal/infra/database/postgres/ticker"
)

// schemaCmd 스키마 관리
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Database schema management",
}

// schemaInitCmd 테이블 생성
var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the stocks and sync_runs tables if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := tickerrepo.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		log.Info().Msg("Schema ready")
		fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaInitCmd)
}
