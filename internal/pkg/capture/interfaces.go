package capture

import (
	"strings"

	"github.com/google/gopacket/pcap"
)

// InterfaceInfo is one entry in a capture-eligible interface listing: the
// name to pass to sniff -i, and a description safe to print.
type InterfaceInfo struct {
	Name        string
	Description string
}

// unmonitorableSubstrings names interface-name fragments that never carry
// engine-worthy traffic: loopback, USB/Bluetooth peripherals, container
// veth pairs, VM host-only adapters, and IPv6-transition tunnels. Matching
// is substring-based because kernels vary in how they number and prefix
// these (docker0, veth3a9f21, vmnet8, isatap.<domain>, ...).
var unmonitorableSubstrings = []string{
	"lo", "loopback",
	"usb", "bluetooth",
	"docker", "veth",
	"vmnet", "vbox",
	"isatap", "teredo",
}

// hostIdentifyingKeywords flags description text that leaks more about the
// capturing host than a "-i eth0" listing needs to: hardware serials, MAC
// octets, vendor strings. When a device description matches, ListInterfaces
// substitutes a generic label instead of sanitizing it further.
var hostIdentifyingKeywords = []string{
	"mac", "address", "serial", "uuid",
	"hardware", "vendor", "manufacturer",
	"private", "internal", "management",
}

const descriptionDisplayLimit = 50

// ListInterfaces enumerates the pcap devices on this host and returns the
// subset a decode-engine capture session could actually attach to, per
// IsValidMonitoringInterface. When includeAny is true, a synthetic "any"
// entry is prepended so callers can offer capture across every interface
// gopacket exposes without listing it separately.
func ListInterfaces(includeAny bool) ([]InterfaceInfo, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}

	var eligible []InterfaceInfo
	if includeAny {
		eligible = append(eligible, InterfaceInfo{
			Name:        "any",
			Description: "Capture from all interfaces",
		})
	}

	for _, device := range devices {
		if device.Name == "any" {
			continue // handled above when requested
		}
		if !IsValidMonitoringInterface(device.Name) {
			continue
		}
		eligible = append(eligible, InterfaceInfo{
			Name:        device.Name,
			Description: describeForListing(device.Description),
		})
	}

	return eligible, nil
}

// IsValidMonitoringInterface reports whether name is worth offering as a
// sniff target: it excludes loopback, USB/Bluetooth, container, VM, and
// tunnel interfaces, none of which carry traffic this engine's TCP flow
// tracker would want to see.
func IsValidMonitoringInterface(name string) bool {
	name = strings.ToLower(name)
	for _, substr := range unmonitorableSubstrings {
		if strings.Contains(name, substr) {
			return false
		}
	}
	return true
}

func describeForListing(desc string) string {
	if desc == "" || containsSensitiveInfo(desc) {
		return "Network interface"
	}
	return sanitizeDescription(desc)
}

func containsSensitiveInfo(desc string) bool {
	desc = strings.ToLower(desc)
	for _, keyword := range hostIdentifyingKeywords {
		if strings.Contains(desc, keyword) {
			return true
		}
	}
	return false
}

func sanitizeDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if len(desc) > descriptionDisplayLimit {
		desc = desc[:descriptionDisplayLimit] + "..."
	}
	return desc
}
