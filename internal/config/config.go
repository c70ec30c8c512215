package config

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/log2"
)

// Config is gpiod.hcl, see ExampleText for all fields.
type Config struct {
	DevDir   string `hcl:"dev_dir"`
	SysDir   string `hcl:"sys_dir"`
	ABI      string `hcl:"abi"`
	LogDebug bool   `hcl:"log_debug"`

	Get struct {
		Line `hcl:",squash"`
	} `hcl:"get"`
	Set struct {
		Line  `hcl:",squash"`
		Drive string `hcl:"drive"`
	} `hcl:"set"`
	Mon struct {
		Line `hcl:",squash"`
		Edge string `hcl:"edge"`
		Mqtt Mqtt   `hcl:"mqtt"`
	} `hcl:"mon"`

	log *log2.Log
}

// Line holds request defaults shared by get/set/mon.
type Line struct {
	Active   string `hcl:"active"`
	Bias     string `hcl:"bias"`
	Consumer string `hcl:"consumer"`
}

// Mqtt is optional event sink of `gpiod mon`.
type Mqtt struct {
	Enable   bool   `hcl:"enable"`
	Broker   string `hcl:"broker"`
	ClientID string `hcl:"client_id"`
	Topic    string `hcl:"topic"`
	Qos      int    `hcl:"qos"`
}

// ExampleText lists every key with its default value.
const ExampleText = `
dev_dir = "/dev"
sys_dir = "/sys"
abi = ""

get { bias = "disable" active = "high" consumer = "gpioget" }
set { bias = "as-is" active = "high" drive = "push-pull" consumer = "gpioset" }
mon {
  bias = "disable" active = "high" edge = "both" consumer = "gpiomon"
  mqtt { enable = false broker = "tcp://localhost:1883" client_id = "gpiod" topic = "gpiod/event" qos = 0 }
}
`

func (c *Config) Log() *log2.Log { return c.log }

// GPIO is library configuration derived from this file.
// Library logs go to the logger in Open context.
func (c *Config) GPIO() *gpio.Config {
	return &gpio.Config{
		DevDir: c.DevDir,
		SysDir: c.SysDir,
		ABI:    c.ABI,
	}
}

func (l *Line) Parse() (active gpio.Active, bias gpio.Bias, err error) {
	if err = active.Set(l.Active); err != nil {
		return
	}
	err = bias.Set(l.Bias)
	return
}

func (c *Config) validate() error {
	errs := make([]string, 0)
	check := func(key string, err error) {
		if err != nil {
			errs = append(errs, key+": "+err.Error())
		}
	}
	for key, l := range map[string]*Line{"get": &c.Get.Line, "set": &c.Set.Line, "mon": &c.Mon.Line} {
		_, _, err := l.Parse()
		check(key, err)
	}
	var d gpio.Drive
	check("set.drive", d.Set(c.Set.Drive))
	var e gpio.EdgeDetect
	check("mon.edge", e.Set(c.Mon.Edge))
	switch strings.ToLower(c.ABI) {
	case "", "v1", "v2":
	default:
		errs = append(errs, "abi="+c.ABI+" (expected v1|v2)")
	}
	if c.Mon.Mqtt.Enable && c.Mon.Mqtt.Broker == "" {
		errs = append(errs, "mon.mqtt.broker is not set")
	}
	if c.Mon.Mqtt.Qos < 0 || c.Mon.Mqtt.Qos > 2 {
		errs = append(errs, "mon.mqtt.qos must be 0, 1 or 2")
	}
	if len(errs) != 0 {
		return errors.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func def(s *string, value string) {
	if *s == "" {
		*s = value
	}
}

func (c *Config) setDefaults() {
	def(&c.DevDir, gpio.DefaultConfig.DevDir)
	def(&c.SysDir, gpio.DefaultConfig.SysDir)
	def(&c.Get.Bias, "disable")
	def(&c.Get.Active, "high")
	def(&c.Get.Consumer, "gpioget")
	def(&c.Set.Bias, "as-is")
	def(&c.Set.Active, "high")
	def(&c.Set.Drive, "push-pull")
	def(&c.Set.Consumer, "gpioset")
	def(&c.Mon.Bias, "disable")
	def(&c.Mon.Active, "high")
	def(&c.Mon.Edge, "both")
	def(&c.Mon.Consumer, "gpiomon")
	def(&c.Mon.Mqtt.Broker, "tcp://localhost:1883")
	def(&c.Mon.Mqtt.ClientID, "gpiod")
	def(&c.Mon.Mqtt.Topic, "gpiod/event")
}

// ReadConfig parses hcl, missing keys take defaults from ExampleText.
func ReadConfig(r io.Reader, log *log2.Log) (*Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "config read")
	}
	c := new(Config)
	if err = hcl.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "config parse")
	}
	c.setDefaults()
	if err = c.validate(); err != nil {
		return nil, err
	}
	if c.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	c.log = log
	return c, nil
}

func ReadConfigFile(path string, log *log2.Log) (*Config, error) {
	if pathAbs, err := filepath.Abs(path); err != nil {
		log.Errorf("filepath.Abs(%s) error=%v", path, err)
	} else {
		path = pathAbs
	}
	log.Debugf("reading config file %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	c, err := ReadConfig(f, log)
	return c, errors.Annotate(err, path)
}

func MustReadConfig(r io.Reader, log *log2.Log) *Config {
	c, err := ReadConfig(r, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

func MustReadConfigFile(path string, log *log2.Log) *Config {
	c, err := ReadConfigFile(path, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
