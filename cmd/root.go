// Package cmd wires the packetflow CLI's cobra command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mizuhashi/packetflow/cmd/list"
	"github.com/mizuhashi/packetflow/cmd/sniff"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "packetflow",
	Short: "packetflow decodes TCP flows from live or offline packet captures",
	Long:  `packetflow captures packets from one or more interfaces (or reads a pcap file), tracks TCP flows, and reports the events the flow tracker produces.`,
}

// Execute runs the root command; it is the CLI's sole entry point.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSubCommands() {
	rootCmd.AddCommand(sniff.SniffCmd)
	rootCmd.AddCommand(list.ListCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	addSubCommands()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.packetflow.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".packetflow")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
