package usbtmc

import (
	"fmt"

	"github.com/google/gousb"
	"go.uber.org/multierr"
)

// USBTMC interface class and subclass.
const (
	classApplication gousb.Class = 0xfe
	subclassUSBTMC   gousb.Class = 0x03
)

// Interface locates the USBTMC interface and its bulk endpoints inside a
// device descriptor.
type Interface struct {
	Config    int
	Number    int
	Alternate int
	BulkIn    int
	BulkOut   int
}

// FindInterface returns the first USBTMC interface of desc with both bulk
// endpoints.
func FindInterface(desc *gousb.DeviceDesc) (Interface, bool) {
	for cfgNum, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != classApplication || alt.SubClass != subclassUSBTMC {
					continue
				}
				found := Interface{Config: cfgNum, Number: alt.Number, Alternate: alt.Alternate, BulkIn: -1, BulkOut: -1}
				for _, ep := range alt.Endpoints {
					if ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if ep.Direction == gousb.EndpointDirectionIn {
						found.BulkIn = ep.Number
					} else {
						found.BulkOut = ep.Number
					}
				}
				if found.BulkIn >= 0 && found.BulkOut >= 0 {
					return found, true
				}
			}
		}
	}
	return Interface{}, false
}

// Open opens the USBTMC device with the given vendor and product id. A
// non-empty serial selects one of several identical devices.
func Open(vendor, product uint16, serial string) (*Conn, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendor) && desc.Product == gousb.ID(product)
	})
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && serialMatches(d, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		if err == nil {
			err = fmt.Errorf("device %04x:%04x serial %q not found", vendor, product, serial)
		}
		ctx.Close()
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	conn, err := claim(dev)
	if err != nil {
		return nil, multierr.Combine(err, dev.Close(), ctx.Close())
	}
	closeDevice := conn.closer
	conn.closer = func() error {
		return multierr.Combine(closeDevice(), ctx.Close())
	}
	return conn, nil
}

func serialMatches(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := d.SerialNumber()
	return err == nil && s == serial
}

func claim(dev *gousb.Device) (*Conn, error) {
	found, ok := FindInterface(dev.Desc)
	if !ok {
		return nil, fmt.Errorf("%s: no USBTMC interface", dev)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("failed to set auto detach: %w", err)
	}
	cfg, err := dev.Config(found.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	intf, err := cfg.Interface(found.Number, found.Alternate)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}
	in, err := intf.InEndpoint(found.BulkIn)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("failed to get IN endpoint: %w", err)
	}
	out, err := intf.OutEndpoint(found.BulkOut)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("failed to get OUT endpoint: %w", err)
	}
	conn := NewConn(in, out)
	conn.closer = func() error {
		intf.Close()
		return multierr.Combine(cfg.Close(), dev.Close())
	}
	return conn, nil
}
