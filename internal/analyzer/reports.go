package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cyber-monitor/backend/internal/event/domain"
)

// CaptureExtensions are the accepted packet-capture file extensions.
var CaptureExtensions = []string{".pcap", ".pcapng", ".cap"}

// CaptureReport is the packet analyzer's report for one capture file.
type CaptureReport struct {
	Success bool           `json:"success"`
	Summary CaptureSummary `json:"summary"`
	// Packets holds at most the first 100 packets.
	Packets []Packet `json:"packets"`
	// Timeline maps a "2006-01-02 15:04:05" second to its packet count.
	Timeline map[string]int `json:"timeline"`
}

// CaptureSummary holds the totals of one capture.
type CaptureSummary struct {
	TotalPackets    int            `json:"total_packets"`
	Duration        float64        `json:"duration"`
	Protocols       map[string]int `json:"protocols"`
	TopSources      map[string]int `json:"top_sources"`
	TopDestinations map[string]int `json:"top_destinations"`
}

// Packet is one decoded packet in a capture.
type Packet struct {
	Time        float64 `json:"time"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Protocol    string  `json:"protocol"`
	Length      int     `json:"length"`
	Info        string  `json:"info"`
}

// NetworkScan lists hosts found on the local network.
type NetworkScan struct {
	Success bool         `json:"success"`
	LocalIP string       `json:"local_ip"`
	Devices []ScanDevice `json:"devices"`
}

// ScanDevice is one responding host.
type ScanDevice struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
}

// PortScan lists open ports on one target.
type PortScan struct {
	Success bool       `json:"success"`
	Target  string     `json:"target"`
	Ports   []OpenPort `json:"ports"`
}

// OpenPort is one port that accepted a connection.
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// AnalyzeCapture runs the packet analyzer on the capture file at path.
func (a *Adapter) AnalyzeCapture(ctx context.Context, path string) (*CaptureReport, error) {
	if err := ValidateCaptureName(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.Invalid("file", "capture file not found")
	case err != nil:
		return nil, err
	case info.IsDir():
		return nil, domain.Invalid("file", "capture path is a directory")
	}
	var report CaptureReport
	if err := a.runInto(ctx, PacketAnalyzer, []string{path}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ScanNetwork discovers hosts on the local network.
func (a *Adapter) ScanNetwork(ctx context.Context) (*NetworkScan, error) {
	var scan NetworkScan
	if err := a.runInto(ctx, NetworkScanner, []string{"scan_network"}, &scan); err != nil {
		return nil, err
	}
	if scan.Devices == nil {
		scan.Devices = []ScanDevice{}
	}
	return &scan, nil
}

// ScanPorts probes common ports on target, which must be an IP address or host name.
func (a *Adapter) ScanPorts(ctx context.Context, target string) (*PortScan, error) {
	target = strings.TrimSpace(target)
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}
	var scan PortScan
	if err := a.runInto(ctx, NetworkScanner, []string{"scan_ports", target}, &scan); err != nil {
		return nil, err
	}
	if scan.Ports == nil {
		scan.Ports = []OpenPort{}
	}
	return &scan, nil
}

func (a *Adapter) runInto(ctx context.Context, engine Engine, args []string, dst any) error {
	out, err := a.Run(ctx, engine, args, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out.JSON, dst); err != nil {
		return &AnalyzerError{Kind: MalformedOutput, Engine: engine, Raw: rawPrefix(out.JSON), Err: err}
	}
	return nil
}

// ValidateCaptureName checks the capture file extension.
func ValidateCaptureName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range CaptureExtensions {
		if ext == allowed {
			return nil
		}
	}
	return domain.Invalid("file", "invalid file type %q: only .pcap, .pcapng and .cap captures are accepted", ext)
}

var hostnameRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*\.?$`)

// ValidateTarget accepts an IP address or an RFC 1123 host name.
func ValidateTarget(target string) error {
	if target == "" {
		return domain.Invalid("target", "target IP is required")
	}
	if net.ParseIP(target) != nil {
		return nil
	}
	if len(target) > 253 || !hostnameRE.MatchString(target) {
		return domain.Invalid("target", "must be an IP address or host name")
	}
	return nil
}
