package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/scoring"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type scoreRow struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Company        string                 `json:"company,omitempty"`
	Overall        int                    `json:"overall"`
	Breakdown      scoring.Breakdown      `json:"breakdown"`
	Recommendation scoring.Recommendation `json:"recommendation"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score postings against the candidate profile without applying",
	Run: func(_ *cobra.Command, _ []string) {
		score()
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("profile-file", "", "candidate profile JSON file")
	scoreCmd.Flags().String("postings-file", "", "postings JSON file")

	viper.BindPFlag("profile-file", scoreCmd.Flags().Lookup("profile-file"))
	viper.BindPFlag("postings-file", scoreCmd.Flags().Lookup("postings-file"))
}

func score() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	profileFile := viper.GetString("profile-file")
	postingsFile := viper.GetString("postings-file")
	if profileFile == "" || postingsFile == "" {
		logger.Fatal("both profile-file and postings-file are required")
	}

	profile, err := jobs.LoadProfile(profileFile)
	if err != nil {
		logger.Fatal("loading the candidate profile", zap.Error(err))
	}

	postings, err := jobs.LoadPostings(postingsFile)
	if err != nil {
		logger.Fatal("loading postings", zap.Error(err))
	}

	engine := scoring.NewEngine()

	rows := make([]scoreRow, 0, postings.Len())
	for _, posting := range postings.Items {
		match := engine.Score(profile, posting)
		rows = append(rows, scoreRow{
			ID:             posting.ID,
			Title:          posting.Title,
			Company:        posting.Company,
			Overall:        match.Overall,
			Breakdown:      match.Breakdown,
			Recommendation: match.Recommendation,
		})
	}

	// Best matches first; ties keep the input order.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Overall > rows[j].Overall
	})

	pretty, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		logger.Fatal("rendering the report", zap.Error(err))
	}

	fmt.Println(string(pretty))
}
