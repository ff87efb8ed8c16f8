// Command clusterfeed connects to a DX cluster relay and prints the
// parsed spot stream to stdout. It is a debugging tool for checking a
// relay's format and login sequence before pointing the bridge at it.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flexdx-bridge/internal/cluster"
)

func main() {
	host := flag.String("host", "", "Primary cluster host:port")
	backup := flag.String("backup", "", "Backup cluster host:port")
	callsign := flag.String("callsign", os.Getenv("STATION_CALLSIGN"), "Login callsign")
	showNotices := flag.Bool("notices", false, "Also print non-spot relay lines")
	flag.Parse()

	logger := log.New(os.Stdout, "[clusterfeed] ", log.LstdFlags)

	if *host == "" {
		logger.Fatal("-host is required")
	}
	if *callsign == "" {
		logger.Fatal("-callsign is required (or set STATION_CALLSIGN)")
	}

	cfg := cluster.DefaultConfig()
	cfg.Primary = *host
	cfg.Backup = *backup
	cfg.Callsign = *callsign

	client := cluster.New(cfg, logger)
	client.Start()
	defer client.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case spot := <-client.Spots():
			logger.Printf("spot %-12s %9.1f kHz %-4s %-4s by %-10s %q",
				spot.Call, spot.FrequencyKHz, spot.Band, spot.Mode, spot.Spotter, spot.Message)

		case line := <-client.Notices():
			if *showNotices {
				logger.Printf("notice: %s", line)
			}

		case st := <-client.Status():
			if st.Err != nil {
				logger.Printf("status: %s disconnected: %v", st.Host, st.Err)
			} else if st.Connected {
				logger.Printf("status: connected to %s", st.Host)
			} else {
				logger.Printf("status: disconnected from %s", st.Host)
			}

		case sig := <-sigCh:
			logger.Printf("Received signal %v, shutting down...", sig)
			return
		}
	}
}
