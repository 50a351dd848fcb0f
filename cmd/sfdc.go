package main

import (
	salesforce "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/store"
	sfpkg "github.com/crestfund/lead-crm/pkg/salesforce"
)

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ConsumerKey == "" {
		return nil, eris.New("salesforce consumer key is required (CRM_SALESFORCE_CONSUMER_KEY)")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.Domain,
		ConsumerKey:    cfg.Salesforce.ConsumerKey,
		ConsumerSecret: cfg.Salesforce.ConsumerSecret,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

var sfdcCmd = &cobra.Command{
	Use:   "sfdc",
	Short: "Push funded deals to Salesforce",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		client, err := initSalesforce()
		if err != nil {
			return err
		}

		app, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		funded, err := app.leads.List(ctx, store.ConversationFilter{State: model.StateFunded})
		if err != nil {
			return eris.Wrap(err, "list funded conversations")
		}

		result, err := sfpkg.NewExporter(client).PushFunded(ctx, funded)
		if err != nil {
			return eris.Wrap(err, "push funded deals")
		}

		zap.L().Info("salesforce export complete",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sfdcCmd)
}
