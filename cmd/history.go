package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/queue"
	"github.com/applyflow/applyflow/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the persisted application history",
	Run: func(cmd *cobra.Command, _ []string) {
		history(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("status", "", "only show records with this status (success or failed)")
}

func history(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	fileStore, err := store.NewFileStore(config.storeDir())
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	records, err := fileStore.LoadApplications(context.Background())
	if err != nil {
		logger.Fatal("loading the application history", zap.Error(err))
	}

	if status := cmd.Flag("status").Value.String(); status != "" {
		records = filterRecordsByStatus(records, status)
	}

	if len(records) == 0 {
		logger.Info("no application records found", zap.String("store", config.storeDir()))
		return
	}

	pretty, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		logger.Fatal("rendering the history", zap.Error(err))
	}

	fmt.Println(string(pretty))
}

// filterRecordsByStatus returns a fresh slice; the loaded history is never
// mutated.
func filterRecordsByStatus(records []queue.ApplicationRecord, status string) []queue.ApplicationRecord {
	filtered := make([]queue.ApplicationRecord, 0, len(records))
	for _, record := range records {
		if string(record.Status) == status {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
