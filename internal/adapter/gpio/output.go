package gpio

import (
	"fmt"
	"sync"

	"github.com/berfenger/kal2mqtt/internal/core/port"

	gpiod "github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// line is the subset of *gpiod.Line driven by Output.
type line interface {
	SetValue(value int) error
	Close() error
}

// Output maps the canonical level onto a line value, inverting for active-low wiring.
type Output struct {
	line      line
	activeLow bool
	logger    *zap.Logger
}

// Open requests offset on chip (e.g. "gpiochip0") as an output driven to initial.
func Open(chip string, offset int, activeLow bool, initial bool, logger *zap.Logger) (*Output, error) {
	c, err := gpiod.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("gpio open %s: %w", chip, err)
	}
	// requested lines outlive the chip handle
	defer c.Close()

	l, err := c.RequestLine(offset, gpiod.AsOutput(lineValue(initial, activeLow)))
	if err != nil {
		return nil, fmt.Errorf("gpio request %s:%d: %w", chip, offset, err)
	}
	return newOutput(l, activeLow, logger.With(zap.String("chip", chip), zap.Int("line", offset))), nil
}

func newOutput(l line, activeLow bool, logger *zap.Logger) *Output {
	return &Output{line: l, activeLow: activeLow, logger: logger}
}

func (o *Output) Set(level bool) error {
	value := lineValue(level, o.activeLow)
	o.logger.Debug("gpio set", zap.Bool("level", level), zap.Int("value", value))
	return o.line.SetValue(value)
}

func (o *Output) Close() error {
	return o.line.Close()
}

func lineValue(level bool, activeLow bool) int {
	if level != activeLow {
		return 1
	}
	return 0
}

// MemoryLine is a simulated line for hosts without GPIO.
type MemoryLine struct {
	mu     sync.Mutex
	value  int
	closed bool
}

func (l *MemoryLine) SetValue(value int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("gpio memory line closed")
	}
	l.value = value
	return nil
}

func (l *MemoryLine) Value() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

func (l *MemoryLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// OpenMemory returns an Output backed by a MemoryLine driven to initial.
func OpenMemory(activeLow bool, initial bool, logger *zap.Logger) (*Output, *MemoryLine) {
	l := &MemoryLine{value: lineValue(initial, activeLow)}
	return newOutput(l, activeLow, logger.With(zap.String("chip", "memory"))), l
}

var _ port.Output = (*Output)(nil)
