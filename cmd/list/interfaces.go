package list

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mizuhashi/packetflow/internal/pkg/capture"
	"github.com/mizuhashi/packetflow/internal/pkg/logger"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces available for capture",
	Run:   runInterfaces,
}

func runInterfaces(cmd *cobra.Command, args []string) {
	if os.Geteuid() != 0 {
		fmt.Println("Warning: running without root privileges. Some interfaces may not be accessible.")
	}

	ifaces, err := capture.ListInterfaces(true)
	if err != nil {
		logger.Error("failed to list network interfaces", "error", err)
		fmt.Println("Unable to list network interfaces. This may be due to insufficient permissions.")
		return
	}

	if len(ifaces) == 0 {
		fmt.Println("No suitable interfaces found for capture.")
		return
	}

	fmt.Println("Network interfaces suitable for capture:")
	for _, iface := range ifaces {
		fmt.Printf("  %s - %s\n", iface.Name, iface.Description)
	}
}
