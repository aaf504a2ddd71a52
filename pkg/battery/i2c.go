package battery

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// BQ27441 standard command codes.
const (
	cmdFlags         = 0x06
	cmdStateOfCharge = 0x1C

	flagDSG = 0x0001
)

// Tx is a half-duplex bus transaction, satisfied by *i2c.Dev.
type Tx interface {
	Tx(w, r []byte) error
}

// I2CGauge talks to a BQ27441 directly over I2C.
type I2CGauge struct {
	mu  sync.Mutex
	dev Tx
	bus i2c.BusCloser
}

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// OpenI2C opens the gauge at addr on the numbered I2C bus.
func OpenI2C(bus, addr int) (*I2CGauge, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(strconv.Itoa(bus))
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %d: %w", bus, err)
	}
	return &I2CGauge{dev: &i2c.Dev{Bus: b, Addr: uint16(addr)}, bus: b}, nil
}

// NewI2CGauge wraps an already opened device.
func NewI2CGauge(dev Tx) *I2CGauge {
	return &I2CGauge{dev: dev}
}

func (g *I2CGauge) word(cmd byte) (uint16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var r [2]byte
	if err := g.dev.Tx([]byte{cmd}, r[:]); err != nil {
		return 0, fmt.Errorf("read 0x%02x: %w", cmd, err)
	}
	return binary.LittleEndian.Uint16(r[:]), nil
}

// StateOfCharge reads the StateOfCharge() command.
func (g *I2CGauge) StateOfCharge(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := g.word(cmdStateOfCharge)
	if err != nil {
		return 0, err
	}
	if v > 100 {
		return 0, fmt.Errorf("%w: %d out of range", ErrBadReading, v)
	}
	return int(v), nil
}

// Discharging reads the DSG bit of Flags().
func (g *I2CGauge) Discharging(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := g.word(cmdFlags)
	if err != nil {
		return false, err
	}
	return v&flagDSG != 0, nil
}

// Close releases the bus if this gauge opened it.
func (g *I2CGauge) Close() error {
	if g.bus != nil {
		return g.bus.Close()
	}
	return nil
}
