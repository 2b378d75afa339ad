package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/blehub/internal/adv"
	"github.com/srg/blehub/internal/manager"
	"github.com/srg/blehub/internal/ringchan"
	"github.com/srg/blehub/internal/scanner"
	"github.com/srg/blehub/internal/telemetry"
	"github.com/srg/blehub/internal/transport/goble"
	"github.com/srg/blehub/pkg/config"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Repeated advertisements from the same device are merged: the strongest name
wins, service UUIDs accumulate and RSSI follows the latest report. In watch
mode the table refreshes continuously until interrupted.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanWatch    bool
	scanVerbose  bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", config.DefaultConfig().ScanTimeout, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", config.DefaultConfig().OutputFormat, "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
	scanCmd.Flags().BoolVar(&scanVerbose, "verbose", false, "Enable debug logging")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	telemetry.InitMetrics()

	transport, err := goble.New(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize BLE adapter: %w", err)
	}
	defer func() { _ = transport.Stop() }()

	mgr := manager.New(logger, nil)
	local := scanner.NewRemoteScanner("local", mgr.AdvertisementCallback(), transport, true, logger, nil)
	unregister, err := mgr.RegisterScanner(local, 0)
	if err != nil {
		return err
	}
	defer unregister()

	baseCtx := context.Background()
	if scanDuration > 0 && !scanWatch {
		var cancel context.CancelFunc
		baseCtx, cancel = context.WithTimeout(baseCtx, scanDuration)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	sweepCancel := local.Setup(ctx)
	defer sweepCancel()

	if scanWatch {
		return runWatchMode(ctx, transport, local, mgr, logger)
	}
	return runSingleScan(ctx, transport, local, mgr, logger)
}

func runSingleScan(ctx context.Context, transport *goble.Transport, local *scanner.RemoteScanner, mgr *manager.Manager, logger *logrus.Logger) error {
	if err := transport.Run(ctx, local); err != nil {
		logger.WithError(err).Error("scan failed")
		return err
	}
	return displayServiceInfo(mgr.DiscoveredServiceInfo(false))
}

func runWatchMode(ctx context.Context, transport *goble.Transport, local *scanner.RemoteScanner, mgr *manager.Manager, logger *logrus.Logger) error {
	// Events flow through an overwrite-oldest buffer so a slow terminal can
	// never stall the dispatch path.
	events := ringchan.New[adv.ServiceInfo](256)
	unsubscribe := mgr.RegisterCallback(manager.Matcher{}, func(info adv.ServiceInfo) {
		events.Send(info)
	})
	defer unsubscribe()

	scanErrCh := make(chan error, 1)
	go func() {
		scanErrCh <- transport.Run(ctx, local)
	}()

	redraw := time.NewTicker(time.Second)
	defer redraw.Stop()

	latest := make(map[string]adv.ServiceInfo)
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-scanErrCh:
			if err != nil {
				logger.WithError(err).Error("scan failed")
				return err
			}
			return nil

		case info := <-events.C():
			latest[info.Address] = info

		case <-redraw.C:
			// Drop records the scanner has expired since the last draw.
			tracked := local.DiscoveredDevicesAndAdvertisementData()
			for address := range latest {
				if _, ok := tracked[address]; !ok {
					delete(latest, address)
				}
			}
			infos := make([]adv.ServiceInfo, 0, len(latest))
			for _, info := range latest {
				infos = append(infos, info)
			}
			clearScreen()
			if err := displayServiceInfo(infos); err != nil {
				return err
			}
		}
	}
}

func displayServiceInfo(infos []adv.ServiceInfo) error {
	if len(infos) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Address < infos[j].Address
	})

	if scanFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}
	return displayServiceInfoTable(infos)
}

func displayServiceInfoTable(infos []adv.ServiceInfo) error {
	var base io.Writer = os.Stdout
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)

	header := "NAME\tADDRESS\tRSSI\tSERVICES\tLAST SEEN"
	if term.IsTerminal(int(os.Stdout.Fd())) {
		header = color.New(color.FgCyan).Sprint(header)
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, info := range infos {
		name := info.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(info.ServiceUUIDs, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		lastSeen := time.Since(info.Time).Truncate(time.Second)

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s ago\n",
			name, info.Address, info.RSSI, services, lastSeen)
	}

	return w.Flush()
}

func clearScreen() {
	fmt.Fprint(os.Stdout, "\033[2J\033[H")
}
