package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BetterCallFirewall/Phishtrap/internal/dataset"
	"github.com/BetterCallFirewall/Phishtrap/internal/model"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the gradient boosting classifier and persist the model artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := viper.GetString("data")
			if data == "" {
				return errors.New("please provide --data with the training table")
			}
			out := viper.GetString("model-out")

			table, err := dataset.LoadCSV(data)
			if err != nil {
				return err
			}

			cfg := model.DefaultConfig()
			cfg.NumTrees = viper.GetInt("trees")
			cfg.MaxDepth = viper.GetInt("depth")
			cfg.LearningRate = viper.GetFloat64("learning-rate")
			cfg.Seed = viper.GetInt64("seed")

			m, err := model.TrainAndEvaluate(cfg, table)
			if err != nil {
				return err
			}

			if err := m.Save(out); err != nil {
				return err
			}

			fmt.Printf("✅ Model artifact saved to %s\n", out)
			return nil
		},
	}

	defaults := model.DefaultConfig()
	cmd.Flags().String("data", "", "Training table CSV produced by `traind build`")
	cmd.Flags().String("model-out", "model.json", "Output path for the model artifact")
	cmd.Flags().Int("trees", defaults.NumTrees, "Number of boosting rounds")
	cmd.Flags().Int("depth", defaults.MaxDepth, "Maximum tree depth")
	cmd.Flags().Float64("learning-rate", defaults.LearningRate, "Boosting learning rate")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed for the train/holdout split")
	_ = viper.BindPFlag("data", cmd.Flags().Lookup("data"))
	_ = viper.BindPFlag("model-out", cmd.Flags().Lookup("model-out"))
	_ = viper.BindPFlag("trees", cmd.Flags().Lookup("trees"))
	_ = viper.BindPFlag("depth", cmd.Flags().Lookup("depth"))
	_ = viper.BindPFlag("learning-rate", cmd.Flags().Lookup("learning-rate"))
	_ = viper.BindPFlag("seed", cmd.Flags().Lookup("seed"))

	return cmd
}
