// Command sdi12bridge runs the SDI-12/wireless soil-moisture bridge: it
// opens the configured UART and GPIO line, brings up the wireless node
// network, and answers SDI-12 host traffic for as long as it runs.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
	"github.com/jkennedy-usgs/sdi12wsn/internal/hw"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/config"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/diag"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/sdi12"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/wireless"
)

var (
	configPath  = flag.String("c", "", "bridge configuration file (ini); defaults baked in if omitted")
	uartDev     = flag.String("u", "/dev/ttyS0", "SDI-12 UART device")
	gpioChip    = flag.String("gpio-chip", "gpiochip0", "GPIO character device for break/mark edge detection")
	gpioLine    = flag.Int("gpio-line", 17, "GPIO line offset watching the SDI-12 wire")
	diagAddr    = flag.String("diag-addr", ":8080", "diagnostics HTTP listen address")
	radioDev    = flag.String("radio", "/dev/ttyUSB0", "wireless radio link device")
	pollPeriod  = flag.Duration("poll", 20*time.Millisecond, "bridge main-loop poll interval")
	discoverDur = flag.Duration("discover-every", 5*time.Minute, "how often to re-run wireless node discovery")
)

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("sdi12bridge: failed to load configuration")
		}
		cfg = loaded
	}

	uart, err := hw.OpenUART(*uartDev, log.WithField("component", "uart"))
	if err != nil {
		log.WithError(err).Fatal("sdi12bridge: failed to open UART")
	}
	defer uart.Close()

	timer := hw.NewTimer()
	engine := sdi12.NewEngine(uart, timer, sdi12.EngineConfig{
		Addresses:          cfg.Addresses,
		MeasureWaitSeconds: cfg.MeasureWaitSeconds,
		Identity:           cfg.Identity,
	}, nil)
	timer.SetSink(engine)

	edges, err := hw.OpenEdgeWatcher(*gpioChip, *gpioLine, engine, log.WithField("component", "gpio"))
	if err != nil {
		log.WithError(err).Fatal("sdi12bridge: failed to open GPIO edge watcher")
	}
	defer edges.Close()

	go func() {
		if err := uart.Run(engine, engine); err != nil {
			log.WithError(err).Error("sdi12bridge: UART read loop exited")
		}
	}()

	reg := registry.New(cfg.RingSize)

	radioConn, err := hw.OpenUART(*radioDev, log.WithField("component", "radio"))
	if err != nil {
		log.WithError(err).Fatal("sdi12bridge: failed to open radio link")
	}
	defer radioConn.Close()
	transport := hw.NewRadioTransport(radioConn.Port())

	addrForDIP := make(map[uint8]uint8, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		var n uint8
		switch {
		case a >= '0' && a <= '9':
			n = a - '0'
		case a >= 'A' && a <= 'Z':
			n = 10 + (a - 'A')
		case a >= 'a' && a <= 'z':
			n = 36 + (a - 'a')
		default:
			continue
		}
		addrForDIP[n] = n
	}

	controller := wireless.New(transport, reg, wireless.Config{
		DiscoveryWindow:   time.Duration(cfg.DiscoveryWindowMs) * time.Millisecond,
		SentinelFullScale: cfg.SentinelFullScale,
		SentinelZero:      cfg.SentinelZero,
		AddressForDIP:     addrForDIP,
	}, nil)

	bridge := sdi12wsn.NewBridge(engine, controller, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runDiscoveryLoop(ctx, bridge, *discoverDur)
	go bridge.Run(ctx, *pollPeriod)

	server := diag.New(engine, reg, nil)
	go func() {
		log.WithField("addr", *diagAddr).Info("sdi12bridge: diagnostics server listening")
		if err := http.ListenAndServe(*diagAddr, server); err != nil {
			log.WithError(err).Error("sdi12bridge: diagnostics server exited")
		}
	}()

	waitForSignal()
	log.Info("sdi12bridge: shutting down")
}

func runDiscoveryLoop(ctx context.Context, b *sdi12wsn.Bridge, every time.Duration) {
	if err := b.RunDiscovery(ctx); err != nil {
		log.WithError(err).Warn("sdi12bridge: initial discovery failed")
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.RunDiscovery(ctx); err != nil {
				log.WithError(err).Warn("sdi12bridge: discovery failed")
			}
		}
	}
}

func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
}
