// Command run-nixie-clock drives the six-tube nixie shield: it keeps wall
// time via NTP with the shield's DS1307 as fallback, schedules the display
// programs, and serves a debug/metrics HTTP endpoint with a live PNG
// preview of the tube face.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/jrockway/nixie-clock/config"
	"github.com/jrockway/nixie-clock/nixie"
	"github.com/jrockway/nixie-clock/scheduler"
	"github.com/jrockway/nixie-clock/timesource"
)

var (
	bind       = flag.String("bind", ":8080", "address to bind for debug/metrics server")
	configPath = flag.String("config", "/etc/nixie-clock.yaml", "path to the config file")
	spiDev     string
)

func mustPin(name string) gpio.PinIO {
	p := gpioreg.ByName(name)
	if p == nil {
		logrus.Fatalf("no gpio pin named %q", name)
	}
	return p
}

func main() {
	periphflag.SPIDevVar(&spiDev, "spi", "", "spi bus that the shield's shift registers are on")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		logrus.Fatalf("init periph.io: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config %q: %v", *configPath, err)
	}
	zone, err := cfg.Zone()
	if err != nil {
		logrus.Fatalf("configured timezone: %v", err)
	}

	var port spi.PortCloser
	var pins nixie.Pins
	if spiDev == "" {
		logrus.Warn("no -spi flag; running headless (preview only)")
	} else {
		port, err = spireg.Open(spiDev)
		if err != nil {
			logrus.Fatalf("open spi port %q: %v", spiDev, err)
		}
		pins = nixie.Pins{
			Latch:    mustPin(cfg.Hardware.LatchPin),
			HV:       mustPin(cfg.Hardware.HVPin),
			Dots:     mustPin(cfg.Hardware.DotsPin),
			LEDRed:   mustPin(cfg.Hardware.LEDRedPin),
			LEDGreen: mustPin(cfg.Hardware.LEDGreenPin),
			LEDBlue:  mustPin(cfg.Hardware.LEDBluePin),
		}
	}

	shield, err := nixie.New(port, pins)
	if err != nil {
		logrus.Fatalf("init shield: %v", err)
	}
	shield.Blank()

	ntp, err := timesource.NewNTPClient(cfg.NTP.Server, cfg.NTP.LocalPort)
	if err != nil {
		logrus.Fatalf("init ntp client: %v", err)
	}
	defer ntp.Close()

	var rtc timesource.RTC
	if cfg.Hardware.I2CBus == "" {
		logrus.Warn("no i2c bus configured; running without the hardware clock")
	} else {
		bus, err := i2creg.Open(cfg.Hardware.I2CBus)
		if err != nil {
			logrus.Fatalf("open i2c bus %q: %v", cfg.Hardware.I2CBus, err)
		}
		defer bus.Close()
		rtc = timesource.NewDS1307(bus)
	}

	source := timesource.NewSource(ntp, rtc)
	clk := timesource.NewClock(source,
		time.Duration(cfg.NTP.SyncInterval), time.Duration(cfg.NTP.RetryInterval))

	ctx, cancel := context.WithCancel(context.Background())

	// Get a time before lighting anything; a failure here is fine, the
	// sync loop keeps trying and we show the host clock meanwhile.
	if err := clk.Sync(ctx); err != nil {
		logrus.Warnf("initial time sync: %v", err)
	}

	http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/display.png", http.StatusFound)
	})
	http.Handle("/display.png", shield)
	http.Handle("/metrics", promhttp.Handler())

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		logrus.Infof("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	syncDoneCh := make(chan error)
	go func() {
		err := clk.Run(ctx)
		select {
		case syncDoneCh <- err:
		case <-ctx.Done():
		}
		close(syncDoneCh)
	}()

	sched := scheduler.New(scheduler.Config{
		TwelveHour:       cfg.Display.TwelveHour,
		OnHour:           cfg.Display.OnHour,
		OffHour:          cfg.Display.OffHour,
		SuppressHourTens: cfg.Display.Suppress.HourTens,
		SuppressDayTens:  cfg.Display.Suppress.DayTens,
		SuppressYearTens: cfg.Display.Suppress.YearTens,
	}, shield, clk.Now, zone)
	schedDoneCh := make(chan error)
	go func() {
		err := sched.Run(ctx)
		select {
		case schedDoneCh <- err:
		case <-ctx.Done():
		}
		close(schedDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		logrus.Errorf("http server died: %v", err)
		httpAlive = false
	case err := <-syncDoneCh:
		logrus.Errorf("sync loop died: %v", err)
	case err := <-schedDoneCh:
		logrus.Errorf("scheduler died: %v", err)
	case <-sigCh:
		logrus.Info("interrupt")
	}
	signal.Stop(sigCh)
	cancel()

	// Leave the hardware dark so anyone looking at the clock can tell
	// the program exited rather than hung.
	shield.Blank()
	shield.SetColor(nixie.Black)
	shield.HVEnable(false)

	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
