package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BetterCallFirewall/Phishtrap/internal/dataset"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Merge two labeled report corpora into one training table",
		RunE: func(cmd *cobra.Command, args []string) error {
			phishing := viper.GetString("phishing")
			benign := viper.GetString("benign")
			if phishing == "" || benign == "" {
				return errors.New("please provide --phishing and --benign report directories")
			}
			out := viper.GetString("out")

			table, err := dataset.Build(cmd.Context(), phishing, benign, out)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Dataset saved to %s (%d rows)\n", out, len(table.X))
			return nil
		},
	}

	cmd.Flags().String("phishing", "", "Directory with extraction reports of phishing pages")
	cmd.Flags().String("benign", "", "Directory with extraction reports of benign pages")
	cmd.Flags().String("out", "phishing.csv", "Output CSV path")
	_ = viper.BindPFlag("phishing", cmd.Flags().Lookup("phishing"))
	_ = viper.BindPFlag("benign", cmd.Flags().Lookup("benign"))
	_ = viper.BindPFlag("out", cmd.Flags().Lookup("out"))

	return cmd
}
