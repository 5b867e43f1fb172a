// Package writeback pushes a scenario's first dispatch hour to a real
// plant controller's Modbus holding registers, grounded on
// sigenergy/modbus_client.go's RTU/TCP client construction and
// scaled-int32 register encoding.
package writeback

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/devskill-org/plant-dispatch/assemble"
)

// Register layout for the first dispatch hour's setpoints, all signed
// 32-bit values: the model's MW figures scaled by 1000 (i.e. kW, three
// decimal digits of precision), big-endian, two holding registers each.
const (
	RegCHP1Power        = 40000
	RegCHP2Power        = 40002
	RegHeatPumpStage1    = 40004
	RegHeatPumpStage2    = 40006
	RegBatteryChargeNet = 40008 // positive = charging, negative = discharging
)

// Client wraps a Modbus client connected to a single plant controller.
type Client struct {
	client  modbus.Client
	handler interface{ Close() error }
}

// DialTCP connects to a plant controller over Modbus TCP at address
// (e.g. "192.168.1.50:502").
func DialTCP(address string, slaveID byte) (*Client, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 5 * time.Second
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("writeback: connect to %s: %w", address, err)
	}
	return &Client{client: modbus.NewClient(handler), handler: handler}, nil
}

// DialRTU connects to a plant controller over Modbus RTU via a serial
// device (e.g. "/dev/ttyUSB0"), the transport goburrow/serial backs.
func DialRTU(device string, baudRate int, slaveID byte) (*Client, error) {
	handler := modbus.NewRTUClientHandler(device)
	handler.BaudRate = baudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = slaveID
	handler.Timeout = 5 * time.Second
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("writeback: connect to %s: %w", device, err)
	}
	return &Client{client: modbus.NewClient(handler), handler: handler}, nil
}

// Close releases the underlying Modbus transport.
func (c *Client) Close() error { return c.handler.Close() }

func s32ToBytes(val int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(val))
	return buf
}

func (c *Client) writePowerKW(register uint16, kw float64) error {
	value := int32(kw * 1000)
	_, err := c.client.WriteMultipleRegisters(register, 2, s32ToBytes(value))
	return err
}

// PushFirstHour reads hour 1 of the solved scenario's dispatch and writes
// CHP power, heat-pump stage power, and net battery charge/discharge
// power to the controller's holding registers.
func (c *Client) PushFirstHour(sc *assemble.Scenario) error {
	const t = 1

	if err := c.writePowerKW(RegCHP1Power, sc.CHP1.Power.At(t)); err != nil {
		return fmt.Errorf("writeback: write chp1 power: %w", err)
	}
	if err := c.writePowerKW(RegCHP2Power, sc.CHP2.Power.At(t)); err != nil {
		return fmt.Errorf("writeback: write chp2 power: %w", err)
	}
	if err := c.writePowerKW(RegHeatPumpStage1, sc.HPStage1.Power.At(t)); err != nil {
		return fmt.Errorf("writeback: write heat pump stage 1 power: %w", err)
	}
	if err := c.writePowerKW(RegHeatPumpStage2, sc.HPStage2.Power.At(t)); err != nil {
		return fmt.Errorf("writeback: write heat pump stage 2 power: %w", err)
	}

	net := sc.Battery.PowerCharging.At(t) - sc.Battery.PowerDischarging.At(t)
	if err := c.writePowerKW(RegBatteryChargeNet, net); err != nil {
		return fmt.Errorf("writeback: write battery net power: %w", err)
	}
	return nil
}
