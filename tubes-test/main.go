// Command tubes-test exercises the shield without the rest of the clock:
// it cycles every digit on every tube once a second, blinks the dots, and
// walks the accent LED around the color wheel.  Useful for checking the
// wiring after assembly.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/periphflag"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/jrockway/nixie-clock/config"
	"github.com/jrockway/nixie-clock/nixie"
)

var (
	configPath = flag.String("config", "/etc/nixie-clock.yaml", "path to the config file (for the pin names)")
	spiDev     string
)

func pin(name string) gpio.PinIO {
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
	port, err := spireg.Open(spiDev)
	if err != nil {
		logrus.Fatalf("open spi port %q: %v", spiDev, err)
	}

	shield, err := nixie.New(port, nixie.Pins{
		Latch:    pin(cfg.Hardware.LatchPin),
		HV:       pin(cfg.Hardware.HVPin),
		Dots:     pin(cfg.Hardware.DotsPin),
		LEDRed:   pin(cfg.Hardware.LEDRedPin),
		LEDGreen: pin(cfg.Hardware.LEDGreenPin),
		LEDBlue:  pin(cfg.Hardware.LEDBluePin),
	})
	if err != nil {
		logrus.Fatalf("init shield: %v", err)
	}

	shield.HVEnable(true)
	logrus.Info("cycling digits; ^C to stop")

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	d := nixie.Digit(0)
test:
	for {
		if err := shield.Show(nixie.Fill(d, d%2 == 0)); err != nil {
			logrus.Errorf("show: %v", err)
		}
		if err := shield.SetColor(nixie.ColorWheel(int(d) * 256 / 11)); err != nil {
			logrus.Errorf("set color: %v", err)
		}
		d = (d + 1) % 11

		select {
		case <-exit:
			break test
		case <-time.After(time.Second):
		}
	}
	logrus.Info("exiting")

	// Blank everything so it's obvious the test is over.
	shield.Blank()
	shield.SetColor(nixie.Black)
	shield.HVEnable(false)
}
