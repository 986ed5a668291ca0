package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "traind",
		Short: "Offline tooling: build the labeled dataset and train the phishing classifier",
	}

	// Environment variable support (TRAIND_DATA, etc.)
	viper.SetEnvPrefix("TRAIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newTrainCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
