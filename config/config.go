// Package config loads the clock's YAML configuration file.  Everything
// has a sensible default; an absent file gets the reference configuration
// (US Eastern, 12-hour display, tubes lit 07:00-23:00, hourly sync
// against time.nist.gov).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jrockway/nixie-clock/timesource"
)

// Duration is a time.Duration that unmarshals from strings like "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Rule configures one seasonal timezone rule.
type Rule struct {
	Name          string `yaml:"name"`
	Week          int    `yaml:"week"` // 1-4, or 0 for the last week
	Weekday       string `yaml:"weekday"`
	Month         string `yaml:"month"`
	Hour          int    `yaml:"hour"`
	OffsetMinutes int    `yaml:"offset_minutes"`
}

// Config is everything fixed at startup.
type Config struct {
	NTP struct {
		Server        string   `yaml:"server"`
		LocalPort     int      `yaml:"local_port"`
		SyncInterval  Duration `yaml:"sync_interval"`
		RetryInterval Duration `yaml:"retry_interval"`
	} `yaml:"ntp"`

	Display struct {
		TwelveHour bool `yaml:"twelve_hour"`
		OnHour     int  `yaml:"on_hour"`
		OffHour    int  `yaml:"off_hour"`
		Suppress   struct {
			HourTens bool `yaml:"hour_tens"`
			DayTens  bool `yaml:"day_tens"`
			YearTens bool `yaml:"year_tens"`
		} `yaml:"suppress_leading_zeros"`
	} `yaml:"display"`

	Timezone struct {
		DST Rule `yaml:"dst"`
		STD Rule `yaml:"std"`
	} `yaml:"timezone"`

	Hardware struct {
		I2CBus      string `yaml:"i2c_bus"` // empty = no RTC fitted
		LatchPin    string `yaml:"latch_pin"`
		HVPin       string `yaml:"hv_pin"`
		DotsPin     string `yaml:"dots_pin"`
		LEDRedPin   string `yaml:"led_red_pin"`
		LEDGreenPin string `yaml:"led_green_pin"`
		LEDBluePin  string `yaml:"led_blue_pin"`
	} `yaml:"hardware"`
}

// Default returns the reference configuration.
func Default() Config {
	var c Config
	c.NTP.Server = timesource.DefaultServer
	c.NTP.LocalPort = timesource.DefaultLocalPort
	c.NTP.SyncInterval = Duration(time.Hour)
	c.NTP.RetryInterval = Duration(time.Minute)
	c.Display.TwelveHour = true
	c.Display.OnHour = 7
	c.Display.OffHour = 23
	c.Display.Suppress.HourTens = true
	c.Timezone.DST = Rule{Name: "EDT", Week: 2, Weekday: "Sunday", Month: "March", Hour: 2, OffsetMinutes: -4 * 60}
	c.Timezone.STD = Rule{Name: "EST", Week: 1, Weekday: "Sunday", Month: "November", Hour: 2, OffsetMinutes: -5 * 60}
	return c
}

// Load reads the file at path over the defaults.  A missing file is fine;
// you just get the defaults.
func Load(path string) (Config, error) {
	c := Default()
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, c.validate()
	}
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.Display.OnHour < 0 || c.Display.OnHour > 23 {
		return fmt.Errorf("on_hour %d out of range", c.Display.OnHour)
	}
	if c.Display.OffHour < 0 || c.Display.OffHour > 23 {
		return fmt.Errorf("off_hour %d out of range", c.Display.OffHour)
	}
	if c.NTP.LocalPort < 0 || c.NTP.LocalPort > 65535 {
		return fmt.Errorf("local_port %d out of range", c.NTP.LocalPort)
	}
	if !strings.Contains(c.NTP.Server, ":") {
		return fmt.Errorf("ntp server %q needs a port", c.NTP.Server)
	}
	if _, err := c.Zone(); err != nil {
		return err
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

func (r Rule) toRule() (timesource.Rule, error) {
	wd, ok := weekdays[strings.ToLower(r.Weekday)]
	if !ok {
		return timesource.Rule{}, fmt.Errorf("rule %q: unknown weekday %q", r.Name, r.Weekday)
	}
	month, ok := months[strings.ToLower(r.Month)]
	if !ok {
		return timesource.Rule{}, fmt.Errorf("rule %q: unknown month %q", r.Name, r.Month)
	}
	if r.Week < 0 || r.Week > 4 {
		return timesource.Rule{}, fmt.Errorf("rule %q: week %d out of range", r.Name, r.Week)
	}
	if r.Hour < 0 || r.Hour > 23 {
		return timesource.Rule{}, fmt.Errorf("rule %q: hour %d out of range", r.Name, r.Hour)
	}
	if r.OffsetMinutes < -14*60 || r.OffsetMinutes > 14*60 {
		return timesource.Rule{}, fmt.Errorf("rule %q: offset %d out of range", r.Name, r.OffsetMinutes)
	}
	return timesource.Rule{
		Name:    r.Name,
		Week:    r.Week,
		Weekday: wd,
		Month:   month,
		Hour:    r.Hour,
		Offset:  r.OffsetMinutes,
	}, nil
}

// Zone converts the configured rule pair.
func (c Config) Zone() (timesource.Zone, error) {
	dst, err := c.Timezone.DST.toRule()
	if err != nil {
		return timesource.Zone{}, err
	}
	std, err := c.Timezone.STD.toRule()
	if err != nil {
		return timesource.Zone{}, err
	}
	return timesource.Zone{DST: dst, STD: std}, nil
}
