package marker_nav

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"go.bug.st/serial"
)

// Transport carries encoded command tokens to the robot.
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// OutputConfig selects and configures the command transport.
type OutputConfig struct {
	Transport  string `json:"transport" mapstructure:"transport"`
	UDPAddr    string `json:"udp_addr" mapstructure:"udp_addr"`
	SerialPort string `json:"serial_port" mapstructure:"serial_port"`
	BaudRate   int    `json:"baud_rate" mapstructure:"baud_rate"`
}

// NewTransport opens the transport named by cfg.Transport.
func NewTransport(cfg OutputConfig) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "udp":
		return NewUDPTransport(cfg.UDPAddr)
	case "serial":
		return NewSerialTransport(cfg.SerialPort, cfg.BaudRate)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// UDPTransport sends each command as one datagram.
type UDPTransport struct {
	conn *net.UDPConn
}

// NewUDPTransport creates a UDP sender for the given address.
func NewUDPTransport(addr string) (*UDPTransport, error) {
	if addr == "" {
		return nil, errors.New("output.udp_addr must be set")
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn}, nil
}

// Send writes payload as a single datagram.
func (t *UDPTransport) Send(payload []byte) error {
	if t == nil || t.conn == nil {
		return net.ErrClosed
	}
	_, err := t.conn.Write(payload)
	return err
}

// Close releases the UDP socket.
func (t *UDPTransport) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// SerialTransport writes command tokens to a USB-serial link.
type SerialTransport struct {
	port serial.Port
}

// NewSerialTransport opens path at the given baud rate, 8N1.
func NewSerialTransport(path string, baud int) (*SerialTransport, error) {
	if path == "" {
		return nil, errors.New("output.serial_port must be set")
	}
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return &SerialTransport{port: port}, nil
}

// Send writes the payload bytes to the port.
func (t *SerialTransport) Send(payload []byte) error {
	_, err := t.port.Write(payload)
	return err
}

// Close releases the serial port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}
