package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crossfire/protocol"
	"crossfire/receiver"
	"crossfire/serial"
)

var (
	device   = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud     = flag.Int("baud", 420000, "Baud rate")
	interval = flag.Duration("interval", 500*time.Millisecond, "Print interval")
	showUs   = flag.Bool("us", false, "Print channels in microseconds instead of raw units")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	port := serial.NewBufferedPort(cfg)

	opts := receiver.DefaultOptions()
	opts.Baud = *baud
	opts.Telemetry = false

	rx := receiver.New(port, opts)

	var stats protocol.LinkStatistics
	haveStats := false
	rx.SetLinkStatisticsHandler(func(s protocol.LinkStatistics) {
		stats = s
		haveStats = true
	})

	if err := rx.Begin(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rx.End()

	fmt.Printf("Listening on %s at %d baud (Ctrl-C to stop)\n", *device, *baud)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	lastPrint := time.Now()
	for {
		select {
		case <-sig:
			fmt.Println("\nDone.")
			return
		default:
		}

		rx.ProcessFrames()

		if time.Since(lastPrint) >= *interval {
			lastPrint = time.Now()
			printChannels(rx)
			if haveStats {
				printLinkStats(stats)
			}
		}

		// Polling loop; the transport read timeout paces us on an idle
		// link, this keeps a busy link from pegging a core.
		time.Sleep(time.Millisecond)
	}
}

func printChannels(rx *receiver.Receiver) {
	fmt.Print("CH:")
	for ch := uint8(0); ch < protocol.RcChannelCount; ch++ {
		fmt.Printf(" %4d", rx.ReadRcChannel(ch, !*showUs))
	}
	if rx.Failsafe() {
		fmt.Print("  [FAILSAFE]")
	}
	fmt.Println()
}

func printLinkStats(s protocol.LinkStatistics) {
	fmt.Printf("Link: RSSI -%d/-%ddBm LQ %d%% SNR %ddB ant %d mode %d pwr %d | down RSSI -%ddBm LQ %d%% SNR %ddB\n",
		s.UplinkRSSIAnt1, s.UplinkRSSIAnt2, s.UplinkLinkQuality, s.UplinkSNR,
		s.ActiveAntenna, s.RFMode, s.UplinkTXPower,
		s.DownlinkRSSI, s.DownlinkLinkQuality, s.DownlinkSNR)
}
