//go:build rp2350

package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"machine"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/config"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

const (
	mtu          = cyw43439.MTU
	joinAttempts = 5
	dhcpPolls    = 15
	tcpPorts     = 2 // HTTP plus the optional 9P export
)

var (
	ErrWiFi = errors.New("board: wifi join failed")
	ErrDHCP = errors.New("board: dhcp did not complete")
)

// spare GPIO lines handed out to actuators beyond the on-board LED, in order.
var sparePins = []machine.Pin{machine.GP16, machine.GP17, machine.GP18, machine.GP19}

// Pico2W is a Raspberry Pi Pico 2 W. The on-board LED hangs off the
// CYW43439 radio chip, not off the RP2350.
type Pico2W struct {
	dev      *cyw43439.Device
	stack    *stacks.PortStack
	logger   logger.Logger
	cfg      *config.Config
	ledTaken bool
	spare    int
}

// Init brings the radio up, joins the configured network and waits for a
// DHCP lease. With LEDCTL_STATIC_IP set, a DHCP timeout falls back to that
// address instead of failing.
func Init(ctx context.Context, cfg *config.Config, log logger.Logger) (Board, error) {
	slogger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var reqAddr netip.Addr
	if cfg.StaticIP != "" {
		addr, err := netip.ParseAddr(cfg.StaticIP)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDCTL_STATIC_IP %q: %w", cfg.StaticIP, err)
		}
		reqAddr = addr
	}

	dev := cyw43439.NewPicoWDevice()
	wifiCfg := cyw43439.DefaultWifiConfig()
	wifiCfg.Logger = slogger

	start := time.Now()
	if err := dev.Init(wifiCfg); err != nil {
		return nil, fmt.Errorf("%w: init radio: %v", ErrWiFi, err)
	}
	log.Info("radio initialised", logger.Duration("elapsed", time.Since(start)))

	if err := join(ctx, dev, cfg, log); err != nil {
		return nil, err
	}

	mac, _ := dev.HardwareAddr6()
	stack := stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: 1, // DHCP
		MaxOpenPortsTCP: tcpPorts,
		MTU:             mtu,
		Logger:          slogger,
	})
	dev.RecvEthHandle(stack.RecvEth)
	go nicLoop(dev, stack)

	if err := lease(ctx, stack, reqAddr, cfg.Hostname, log); err != nil {
		return nil, err
	}

	return &Pico2W{dev: dev, stack: stack, logger: log, cfg: cfg}, nil
}

func join(ctx context.Context, dev *cyw43439.Device, cfg *config.Config, log logger.Logger) error {
	var err error
	for attempt := 1; attempt <= joinAttempts; attempt++ {
		if err = dev.JoinWPA2(cfg.WiFiSSID, cfg.WiFiPassword); err == nil {
			log.Info("wifi joined", logger.String("ssid", cfg.WiFiSSID))
			return nil
		}
		log.Warn("wifi join failed",
			logger.String("ssid", cfg.WiFiSSID),
			logger.Int("attempt", attempt),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrWiFi, cfg.WiFiSSID, err)
}

func lease(ctx context.Context, stack *stacks.PortStack, reqAddr netip.Addr, hostname string, log logger.Logger) error {
	client := stacks.NewDHCPClient(stack, dhcp.DefaultClientPort)
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      hostname,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDHCP, err)
	}

	for i := 0; client.State() != dhcp.StateBound; i++ {
		if i >= dhcpPolls {
			if !reqAddr.IsValid() {
				return ErrDHCP
			}
			log.Warn("dhcp did not complete, using static address",
				logger.String("ip", reqAddr.String()))
			stack.SetAddr(reqAddr)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	ip := client.Offer()
	stack.SetAddr(ip)
	log.Info("dhcp complete",
		logger.String("ip", ip.String()),
		logger.String("gateway", client.Gateway().String()),
		logger.Duration("lease", client.IPLeaseTime()))
	return nil
}

func (p *Pico2W) Name() string { return "pico2w" }

// Listen starts a TCP listener on the port of addr. The host part is
// ignored: the stack has a single address.
func (p *Pico2W) Listen(_ context.Context, addr string) (net.Listener, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("listen address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("listen port %q: %w", portStr, err)
	}

	ln, err := stacks.NewTCPListener(p.stack, stacks.TCPListenerConfig{
		MaxConnections: uint16(p.cfg.PoolSize),
		ConnTxBufSize:  uint16(p.cfg.WriteBufferSize),
		ConnRxBufSize:  uint16(p.cfg.ReadBufferSize),
	})
	if err != nil {
		return nil, fmt.Errorf("create listener: %w", err)
	}
	if err := ln.StartListening(uint16(port)); err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return ln, nil
}

// Output drives the on-board LED for the first actuator asked for and spare
// GPIO lines for the next ones.
func (p *Pico2W) Output(name string, initial bool) (actuator.Output, error) {
	if !p.ledTaken {
		p.ledTaken = true
		led := &radioLED{dev: p.dev}
		led.set(initial)
		return led, nil
	}
	if p.spare >= len(sparePins) {
		return nil, fmt.Errorf("no GPIO line left for actuator %q", name)
	}
	pin := sparePins[p.spare]
	p.spare++
	return newGPIOLine(pin, initial), nil
}

// HeartbeatOutput blinks GP15.
func (p *Pico2W) HeartbeatOutput() actuator.Output {
	return newGPIOLine(machine.GP15, false)
}

func (p *Pico2W) Close() error { return nil }

// radioLED is the LED wired to GPIO 0 of the CYW43439.
type radioLED struct {
	dev  *cyw43439.Device
	high bool
}

func (l *radioLED) set(high bool) {
	l.high = high
	l.dev.GPIOSet(0, high)
}

func (l *radioLED) Toggle()      { l.set(!l.high) }
func (l *radioLED) IsHigh() bool { return l.high }

type gpioLine struct {
	pin machine.Pin
}

func newGPIOLine(pin machine.Pin, initial bool) *gpioLine {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Set(initial)
	return &gpioLine{pin: pin}
}

func (g *gpioLine) Toggle()      { g.pin.Set(!g.pin.Get()) }
func (g *gpioLine) IsHigh() bool { return g.pin.Get() }

// nicLoop moves frames between the radio and the stack.
func nicLoop(dev *cyw43439.Device, stack *stacks.PortStack) {
	const (
		queueSize  = 3
		maxRetries = 3
	)
	var (
		queue   [queueSize][mtu]byte
		lengths [queueSize]int
		retries [queueSize]int
	)

	for {
		idleRx := true
		if got, err := dev.PollOne(); err != nil {
			println("poll error:", err.Error())
		} else if got {
			idleRx = false
		}

		for i := range queue {
			if retries[i] != 0 {
				continue
			}
			n, err := stack.HandleEth(queue[i][:])
			if err != nil {
				println("stack error:", err.Error())
				n = 0
			}
			lengths[i] = n
			if n == 0 {
				break
			}
		}

		if lengths == [queueSize]int{} {
			if idleRx {
				time.Sleep(50 * time.Millisecond)
			}
			continue
		}

		for i := range queue {
			if lengths[i] <= 0 {
				continue
			}
			if err := dev.SendEth(queue[i][:lengths[i]]); err != nil {
				retries[i]++
				if retries[i] <= maxRetries {
					continue
				}
				println("dropped outgoing packet:", err.Error())
			}
			lengths[i] = 0
			retries[i] = 0
		}
	}
}
