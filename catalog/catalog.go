// Package catalog holds the declarative device capability catalog: static
// descriptions of the hardware the monitored nodes run on. The catalog is
// consumed as configuration data only: documents load from YAML, validate
// against an embedded JSON schema and register by device identifier.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

//go:embed schema.json
var deviceSchema []byte

// Device describes one hardware model.
type Device struct {
	Identifier   string `yaml:"identifier" json:"identifier"`
	Name         string `yaml:"name" json:"name"`
	Manufacturer string `yaml:"manufacturer" json:"manufacturer"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty"`
	Architecture string `yaml:"architecture" json:"architecture"`

	Radios   []Radio        `yaml:"radios,omitempty" json:"radios,omitempty"`
	Switches []Switch       `yaml:"switches,omitempty" json:"switches,omitempty"`
	Ports    []EthernetPort `yaml:"ports,omitempty" json:"ports,omitempty"`
	Antennas []Antenna      `yaml:"antennas,omitempty" json:"antennas,omitempty"`

	// PortMap and Drivers map platform names to per-port platform detail.
	PortMap map[string]map[string]string `yaml:"port_map,omitempty" json:"port_map,omitempty"`
	Drivers map[string]map[string]string `yaml:"drivers,omitempty" json:"drivers,omitempty"`
}

// Radio is one wireless radio of a device.
type Radio struct {
	Identifier  string   `yaml:"identifier" json:"identifier"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Protocols   []string `yaml:"protocols" json:"protocols"`
	Connectors  []string `yaml:"connectors,omitempty" json:"connectors,omitempty"`
	Features    []string `yaml:"features,omitempty" json:"features,omitempty"`
}

// Switch is an internal ethernet switch with its VLAN presets.
type Switch struct {
	Identifier string   `yaml:"identifier" json:"identifier"`
	Ports      int      `yaml:"ports" json:"ports"`
	CPUPort    int      `yaml:"cpu_port" json:"cpu_port"`
	Presets    []string `yaml:"presets,omitempty" json:"presets,omitempty"`
}

// EthernetPort is one wired port.
type EthernetPort struct {
	Identifier  string `yaml:"identifier" json:"identifier"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Antenna describes a built-in antenna.
type Antenna struct {
	Identifier      string  `yaml:"identifier" json:"identifier"`
	Polarization    string  `yaml:"polarization,omitempty" json:"polarization,omitempty"`
	AngleHorizontal int     `yaml:"angle_horizontal,omitempty" json:"angle_horizontal,omitempty"`
	AngleVertical   int     `yaml:"angle_vertical,omitempty" json:"angle_vertical,omitempty"`
	Gain            float64 `yaml:"gain,omitempty" json:"gain,omitempty"`
}

// Registry holds registered devices by identifier.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Register validates the device and adds it. Duplicate identifiers are a
// configuration error.
func (r *Registry) Register(device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[device.Identifier]; exists {
		return errors.WrapInvalid(errors.ErrInvalidData, "catalog", "Register",
			fmt.Sprintf("device %q already registered", device.Identifier))
	}
	r.devices[device.Identifier] = device
	return nil
}

// Device returns a registered device by identifier.
func (r *Registry) Device(identifier string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[identifier]
	return d, ok
}

// Identifiers returns the registered identifiers, sorted.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeviceTags returns the descriptive stream tags for a device, for folding
// into node descriptors. Unknown identifiers contribute nothing; monitoring
// must not stall on an incomplete catalog.
func (r *Registry) DeviceTags(identifier string) datastream.Tags {
	device, ok := r.Device(identifier)
	if !ok {
		return nil
	}
	return datastream.Tags{
		"device_name":         device.Name,
		"device_manufacturer": device.Manufacturer,
		"device_architecture": device.Architecture,
	}
}

// LoadDir loads every .yml/.yaml document under dir into the registry. A
// file may hold one device or a list under a top-level "devices" key.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, "catalog", "LoadDir", fmt.Sprintf("read %s", dir))
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads one catalog document into the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "catalog", "LoadFile", fmt.Sprintf("read %s", path))
	}
	devices, err := ParseDevices(data)
	if err != nil {
		return errors.WrapInvalid(err, "catalog", "LoadFile", path)
	}
	for _, device := range devices {
		if err := r.Register(device); err != nil {
			return errors.WrapInvalid(err, "catalog", "LoadFile", path)
		}
	}
	return nil
}

// ParseDevices parses catalog YAML holding either a single device or a
// document with a top-level devices list.
func ParseDevices(data []byte) ([]*Device, error) {
	var doc struct {
		Devices []*Device `yaml:"devices"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "ParseDevices", "unmarshal catalog document")
	}
	if len(doc.Devices) > 0 {
		return doc.Devices, nil
	}

	var single Device
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "ParseDevices", "unmarshal catalog document")
	}
	if single.Identifier == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "catalog", "ParseDevices",
			"document declares no devices")
	}
	return []*Device{&single}, nil
}

// ValidateDevice checks a device against the embedded catalog schema.
func ValidateDevice(device *Device) error {
	if device == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "catalog", "ValidateDevice",
			"device cannot be nil")
	}
	doc, err := json.Marshal(device)
	if err != nil {
		return errors.WrapInvalid(err, "catalog", "ValidateDevice", "marshal device")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(deviceSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return errors.WrapInvalid(err, "catalog", "ValidateDevice", "run schema validation")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(errors.ErrInvalidData, "catalog", "ValidateDevice",
			fmt.Sprintf("device %q: %s", device.Identifier, strings.Join(details, "; ")))
	}
	return nil
}
