// Package sniff implements the "sniff" subcommand: capture from one or
// more interfaces (or read a pcap file), run the decode engine over the
// captured frames, and print flow-tracker events as they happen.
package sniff

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mizuhashi/packetflow/internal/engine"
	"github.com/mizuhashi/packetflow/internal/engine/property"
	"github.com/mizuhashi/packetflow/internal/pkg/capture"
	"github.com/mizuhashi/packetflow/internal/pkg/capture/pcaptypes"
	"github.com/mizuhashi/packetflow/internal/pkg/config"
	"github.com/mizuhashi/packetflow/internal/pkg/logger"
	"github.com/mizuhashi/packetflow/internal/pkg/output"
)

var (
	ifaceNames []string
	pcapFile   string
	bpfFilter  string
)

var errNoInterface = errors.New("sniff: specify -i/--interface or -r/--read")

func errNotMonitorable(name string) error {
	return fmt.Errorf("sniff: %q is not a valid capture interface (loopback, container, VM, and tunnel interfaces are excluded)", name)
}

// SniffCmd is the "sniff" subcommand, added to the root command by cmd/root.go.
var SniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Capture packets and report TCP flow events",
	RunE:  runSniff,
}

func init() {
	SniffCmd.Flags().StringSliceVarP(&ifaceNames, "interface", "i", nil, "interface(s) to capture on")
	SniffCmd.Flags().StringVarP(&pcapFile, "read", "r", "", "read packets from a pcap file instead of a live interface")
	SniffCmd.Flags().StringVarP(&bpfFilter, "filter", "f", "", "BPF filter expression")
	SniffCmd.Flags().Bool("promiscuous", true, "capture in promiscuous mode")
	_ = viper.BindPFlag("promiscuous", SniffCmd.Flags().Lookup("promiscuous"))
}

func runSniff(cmd *cobra.Command, args []string) error {
	ifaces, err := resolveInterfaces()
	if err != nil {
		return err
	}

	cfg := config.Get()
	eng := engine.New(cfg.ChannelCapacity, cfg.SessionTTL, cfg.SessionTableBuckets, cfg.MaxSessions)

	eng.On("new_session", func(prop *property.Property) {
		output.WriteFlowEvent("new_session", eng.TCP, prop)
	})
	eng.On("established", func(prop *property.Property) {
		output.WriteFlowEvent("established", eng.TCP, prop)
	})
	eng.On("closed", func(prop *property.Property) {
		output.WriteFlowEvent("closed", eng.TCP, prop)
	})

	go capture.Init(ifaces, bpfFilter, eng.Channel)

	eng.Kernel.Run()

	logger.Info("capture finished", "packets", eng.Kernel.RecvPkt(), "bytes", eng.Kernel.RecvSize())
	return nil
}

func resolveInterfaces() ([]pcaptypes.PcapInterface, error) {
	if pcapFile != "" {
		f, err := os.Open(pcapFile)
		if err != nil {
			return nil, err
		}
		return []pcaptypes.PcapInterface{pcaptypes.CreateOfflineInterface(f)}, nil
	}

	if len(ifaceNames) == 0 {
		return nil, errNoInterface
	}

	ifaces := make([]pcaptypes.PcapInterface, 0, len(ifaceNames))
	for _, name := range ifaceNames {
		if !capture.IsValidMonitoringInterface(name) {
			return nil, errNotMonitorable(name)
		}
		ifaces = append(ifaces, pcaptypes.CreateLiveInterface(name))
	}
	return ifaces, nil
}
