package gpio

import (
	"strings"

	"github.com/juju/errors"
)

// Direction of a line request.
type Direction uint8

const (
	DirectionInput Direction = iota
	DirectionOutput
	// DirectionUnknown is only reported by LineInfo for lines without a direction flag.
	DirectionUnknown
)

// Active selects which physical level reads as true.
type Active uint8

const (
	ActiveHigh Active = iota
	ActiveLow
)

// Bias of input lines.
type Bias uint8

const (
	BiasAsIs Bias = iota
	BiasDisable
	BiasPullUp
	BiasPullDown
)

// Drive of output lines.
type Drive uint8

const (
	DrivePushPull Drive = iota
	DriveOpenDrain
	DriveOpenSource
)

// EdgeDetect selects which transitions of input lines produce events.
type EdgeDetect uint8

const (
	EdgeNone EdgeDetect = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Edge is the kind of a single reported transition.
type Edge uint8

const (
	Rising Edge = iota + 1
	Falling
)

var (
	directionNames = []string{"input", "output", "unknown"}
	activeNames    = []string{"high", "low"}
	biasNames      = []string{"as-is", "disable", "pull-up", "pull-down"}
	driveNames     = []string{"push-pull", "open-drain", "open-source"}
	edgeDetectName = []string{"none", "rising", "falling", "both"}
	edgeNames      = []string{"", "rising", "falling"}
)

func enumString(names []string, i int) string {
	if i < 0 || i >= len(names) || names[i] == "" {
		return "invalid"
	}
	return names[i]
}

func enumParse(kind string, names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name != "" && name == s {
			return i, nil
		}
	}
	return 0, errors.NotValidf("%s=%q (expected %s)", kind, s, strings.Join(names, "|"))
}

func (d Direction) String() string  { return enumString(directionNames, int(d)) }
func (a Active) String() string     { return enumString(activeNames, int(a)) }
func (b Bias) String() string       { return enumString(biasNames, int(b)) }
func (d Drive) String() string      { return enumString(driveNames, int(d)) }
func (e EdgeDetect) String() string { return enumString(edgeDetectName, int(e)) }
func (e Edge) String() string       { return enumString(edgeNames, int(e)) }

// Set implements flag.Value.
func (a *Active) Set(s string) error {
	i, err := enumParse("active", activeNames, s)
	if err == nil {
		*a = Active(i)
	}
	return err
}

// Set implements flag.Value.
func (b *Bias) Set(s string) error {
	i, err := enumParse("bias", biasNames, s)
	if err == nil {
		*b = Bias(i)
	}
	return err
}

// Set implements flag.Value.
func (d *Drive) Set(s string) error {
	i, err := enumParse("drive", driveNames, s)
	if err == nil {
		*d = Drive(i)
	}
	return err
}

// Set implements flag.Value.
func (e *EdgeDetect) Set(s string) error {
	i, err := enumParse("edge", edgeDetectName, s)
	if err == nil {
		*e = EdgeDetect(i)
	}
	return err
}

func (a *Active) UnmarshalText(b []byte) error     { return a.Set(string(b)) }
func (b *Bias) UnmarshalText(t []byte) error       { return b.Set(string(t)) }
func (d *Drive) UnmarshalText(b []byte) error      { return d.Set(string(b)) }
func (e *EdgeDetect) UnmarshalText(b []byte) error { return e.Set(string(b)) }

type baseOptions struct {
	offsets  []uint32
	consumer string
	active   Active
	bias     Bias
}

func newBaseOptions(offsets []uint32) (baseOptions, error) {
	if len(offsets) == 0 {
		return baseOptions{}, errors.NotValidf("empty offsets")
	}
	if len(offsets) > MaxValues {
		return baseOptions{}, errors.NotValidf("offsets count=%d max=%d", len(offsets), MaxValues)
	}
	seen := make(map[uint32]struct{}, len(offsets))
	for _, o := range offsets {
		if _, ok := seen[o]; ok {
			return baseOptions{}, errors.NotValidf("duplicate offset=%d", o)
		}
		seen[o] = struct{}{}
	}
	own := make([]uint32, len(offsets))
	copy(own, offsets)
	return baseOptions{offsets: own}, nil
}

// InputOptions describes an input line request. Zero value is not usable, see Input().
type InputOptions struct {
	baseOptions
	edge EdgeDetect
}

// Input starts an input request for offsets, in the order given.
func Input(offsets ...uint32) (InputOptions, error) {
	base, err := newBaseOptions(offsets)
	if err != nil {
		return InputOptions{}, errors.Annotate(err, "gpio.Input")
	}
	return InputOptions{baseOptions: base}, nil
}

func (o InputOptions) Active(a Active) InputOptions   { o.active = a; return o }
func (o InputOptions) Bias(b Bias) InputOptions       { o.bias = b; return o }
func (o InputOptions) Consumer(s string) InputOptions { o.consumer = s; return o }
func (o InputOptions) Edge(e EdgeDetect) InputOptions { o.edge = e; return o }
func (o InputOptions) Offsets() []uint32              { return copyOffsets(o.offsets) }

func (o InputOptions) request() *request {
	return o.baseOptions.request(DirectionInput, o.edge, DrivePushPull, nil)
}

// OutputOptions describes an output line request. Zero value is not usable, see Output().
type OutputOptions struct {
	baseOptions
	drive  Drive
	values []bool
}

// Output starts an output request for offsets, in the order given.
func Output(offsets ...uint32) (OutputOptions, error) {
	base, err := newBaseOptions(offsets)
	if err != nil {
		return OutputOptions{}, errors.Annotate(err, "gpio.Output")
	}
	return OutputOptions{baseOptions: base}, nil
}

func (o OutputOptions) Active(a Active) OutputOptions   { o.active = a; return o }
func (o OutputOptions) Bias(b Bias) OutputOptions       { o.bias = b; return o }
func (o OutputOptions) Consumer(s string) OutputOptions { o.consumer = s; return o }
func (o OutputOptions) Drive(d Drive) OutputOptions     { o.drive = d; return o }
func (o OutputOptions) Offsets() []uint32               { return copyOffsets(o.offsets) }

// Values sets initial output levels; extra values are ignored, missing ones are false.
func (o OutputOptions) Values(values []bool) OutputOptions {
	o.values = make([]bool, len(o.offsets))
	copy(o.values, values)
	return o
}

func (o OutputOptions) request() *request {
	return o.baseOptions.request(DirectionOutput, EdgeNone, o.drive, o.values)
}

// request is the direction-neutral form consumed by the codec.
type request struct {
	offsets   []uint32
	consumer  string
	direction Direction
	active    Active
	bias      Bias
	drive     Drive
	edge      EdgeDetect
	values    []bool
}

func (b baseOptions) request(dir Direction, edge EdgeDetect, drive Drive, values []bool) *request {
	r := &request{
		offsets:   copyOffsets(b.offsets),
		consumer:  b.consumer,
		direction: dir,
		active:    b.active,
		bias:      b.bias,
		drive:     drive,
		edge:      edge,
	}
	if values != nil {
		r.values = make([]bool, len(values))
		copy(r.values, values)
	}
	return r
}

func (r *request) validate() error {
	if len(r.offsets) == 0 {
		return errors.NotValidf("request without offsets")
	}
	return nil
}

func copyOffsets(offsets []uint32) []uint32 {
	result := make([]uint32, len(offsets))
	copy(result, offsets)
	return result
}
