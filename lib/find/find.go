// Package find lists the resources an instrument may be reached through:
// USBTMC devices and serial ports.
package find

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"github.com/gotmc/utg900/lib/usbtmc"
	"github.com/gotmc/utg900/lib/visa"
	"go.bug.st/serial/enumerator"
	"go.uber.org/multierr"
)

// UNI-T USB vendor id.
const VendorUNIT = 0x6656

type FilterFn func(*Device) bool

// VendorFilter matches devices with the given USB vendor id.
func VendorFilter(vid uint16) FilterFn {
	return func(d *Device) bool { return d.Vendor == vid }
}

func SerialFilter(s string) FilterFn {
	return func(d *Device) bool { return d.Serial == s }
}

// Device is one addressable resource.
type Device struct {
	Resource string // VISA resource string
	Port     string // serial device; empty for USBTMC
	Vendor   uint16
	Product  uint16
	Prod     string
	Serial   string
}

func (d Device) String() string {
	s := d.Resource
	if d.Vendor != 0 || d.Product != 0 {
		s += fmt.Sprintf(" vid/pid %04x/%04x", d.Vendor, d.Product)
	}
	if d.Prod != "" {
		s += " prod " + d.Prod
	}
	if d.Serial != "" {
		s += " serial " + d.Serial
	}
	return s
}

type Devices []Device

func (ds Devices) String() string {
	s := make([]string, 0, len(ds))
	for _, d := range ds {
		s = append(s, d.String())
	}
	return strings.Join(s, "\n")
}

// Listers, replaced in tests.
var (
	listUSBTMC = allUSBTMC
	listSerial = allSerial
)

// Resources lists USBTMC devices followed by serial ports. Devices for
// which filter returns false are dropped; a nil filter keeps all. A failure
// of one enumeration does not hide the results of the other.
func Resources(filter FilterFn) (Devices, error) {
	usb, uerr := listUSBTMC()
	ser, serr := listSerial()
	var out Devices
	for _, d := range append(usb, ser...) {
		d := d
		if filter == nil || filter(&d) {
			out = append(out, d)
		}
	}
	return out, multierr.Combine(uerr, serr)
}

func allUSBTMC() (Devices, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := usbtmc.FindInterface(desc)
		return ok
	})
	var out Devices
	for _, dev := range devs {
		d := Device{
			Vendor:  uint16(dev.Desc.Vendor),
			Product: uint16(dev.Desc.Product),
		}
		// Strings need an open device; missing ones are left empty.
		d.Serial, _ = dev.SerialNumber()
		d.Prod, _ = dev.Product()
		d.Resource = visa.Resource{
			Interface: visa.USB,
			Vendor:    d.Vendor,
			Product:   d.Product,
			Serial:    d.Serial,
		}.String()
		out = append(out, d)
		err = multierr.Append(err, dev.Close())
	}
	if err != nil {
		err = fmt.Errorf("usb enumeration: %w", err)
	}
	return out, err
}

func allSerial() (Devices, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial enumeration: %w", err)
	}
	out := make(Devices, 0, len(ports))
	for _, p := range ports {
		out = append(out, serialDevice(p))
	}
	return out, nil
}

func serialDevice(p *enumerator.PortDetails) Device {
	d := Device{
		Port:     p.Name,
		Resource: visa.Resource{Interface: visa.ASRL, Port: p.Name, GPIB: -1}.String(),
	}
	if p.IsUSB {
		d.Vendor = hexID(p.VID)
		d.Product = hexID(p.PID)
		d.Serial = p.SerialNumber
		d.Prod = p.Product
	}
	return d
}

// hexID parses a bare hex USB id as reported by the serial enumerator.
func hexID(s string) uint16 {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
