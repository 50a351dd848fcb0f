package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/store"
	"github.com/crestfund/lead-crm/pkg/notion"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Mirror the pipeline to a Notion board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (CRM_NOTION_TOKEN)")
		}
		if cfg.Notion.BoardDB == "" {
			return eris.New("notion board DB ID is required (CRM_NOTION_BOARD_DB)")
		}

		app, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		convs, err := app.leads.List(ctx, store.ConversationFilter{})
		if err != nil {
			return eris.Wrap(err, "list conversations")
		}

		syncer := notion.NewBoardSyncer(notion.NewClient(cfg.Notion.Token), cfg.Notion.BoardDB)
		result, err := syncer.Sync(ctx, convs)
		if err != nil {
			return eris.Wrap(err, "sync board")
		}

		zap.L().Info("board synced",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
