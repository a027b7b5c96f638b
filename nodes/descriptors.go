package nodes

import (
	"fmt"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/fields"
	"github.com/mitjajez/nodewatcher/registry"
)

// maxCounterRate rejects rate datapoints above 1 Gbit/s in bytes per second
// as wrapped or overflowed counter readings.
const maxCounterRate = float64(1 << 30 / 8)

// trafficField is the name of the node-level dynamic traffic sum.
const trafficField = "traffic"

// Adapter builds descriptors for the node domain. The interface schema is
// immutable after construction and shared by every interface descriptor.
// Node descriptors each carry their own schema: the traffic sum's source
// list is per-node state, refreshed by PrepareCycle, and cycle workers
// process nodes concurrently.
type Adapter struct {
	ifaceSchema *fields.Schema
	deviceTags  func(device string) datastream.Tags
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDeviceTags folds device-catalog metadata for a node's device into its
// descriptor stream tags.
func WithDeviceTags(fn func(device string) datastream.Tags) AdapterOption {
	return func(a *Adapter) { a.deviceTags = fn }
}

// NewAdapter declares the shared interface schema.
func NewAdapter(opts ...AdapterOption) (*Adapter, error) {
	a := &Adapter{}
	for _, opt := range opts {
		opt(a)
	}
	a.ifaceSchema = newInterfaceSchema()
	return a, nil
}

func newNodeSchema() *fields.Schema {
	return fields.NewSchema().
		MustAdd("rtt", fields.NewFloat()).
		MustAdd("uptime", fields.NewCounter()).
		MustAdd("uptime_reset", fields.NewReset("#uptime")).
		MustAdd("clients", fields.NewInteger()).
		MustAdd("load_avg", fields.NewFloat()).
		MustAdd("wifi_channels", fields.NewIntegerArrayNominal()).
		MustAdd("status", fields.NewNominal()).
		MustAdd("topology", fields.NewGraph()).
		// Rate of the primary interface's inbound counter, reached on the
		// interface object through a model reference.
		MustAdd("primary_rx_rate", fields.NewRate(
			"primary_interface#rx_bytes_reset", "primary_interface#rx_bytes",
			float64p(maxCounterRate))).
		MustAdd(trafficField, fields.NewDynamicSum(fields.WithTags(datastream.Tags{
			"visualization": datastream.Tags{"title": "Total traffic"},
		})))
}

func newInterfaceSchema() *fields.Schema {
	rateTags := fields.WithTags(datastream.Tags{
		"visualization": datastream.Tags{
			"title": fields.NewTagReference("interface").Template("Traffic (${interface})"),
		},
	})
	return fields.NewSchema().
		MustAdd("tx_bytes", fields.NewCounter()).
		MustAdd("tx_bytes_reset", fields.NewReset("#tx_bytes")).
		MustAdd("tx_rate", fields.NewRate("#tx_bytes_reset", "#tx_bytes", float64p(maxCounterRate), rateTags)).
		MustAdd("rx_bytes", fields.NewCounter()).
		MustAdd("rx_bytes_reset", fields.NewReset("#rx_bytes")).
		MustAdd("rx_rate", fields.NewRate("#rx_bytes_reset", "#rx_bytes", float64p(maxCounterRate), rateTags))
}

// RegisterWith registers descriptor factories for *Node and *Interface.
func (a *Adapter) RegisterWith(pool *registry.Pool) error {
	if err := pool.Register(&Node{}, func(model any) fields.Descriptor {
		return a.NodeDescriptor(model.(*Node))
	}); err != nil {
		return err
	}
	return pool.Register(&Interface{}, func(model any) fields.Descriptor {
		return a.InterfaceDescriptor(model.(*Interface))
	})
}

// NodeDescriptor wraps a node. Every descriptor gets its own schema so the
// traffic sum PrepareCycle mutates is never shared between nodes.
func (a *Adapter) NodeDescriptor(node *Node) *NodeDescriptor {
	return &NodeDescriptor{adapter: a, node: node, schema: newNodeSchema()}
}

// InterfaceDescriptor wraps an interface.
func (a *Adapter) InterfaceDescriptor(iface *Interface) *InterfaceDescriptor {
	return &InterfaceDescriptor{adapter: a, iface: iface}
}

// NodeDescriptor adapts a Node for stream materialization.
type NodeDescriptor struct {
	adapter *Adapter
	node    *Node
	schema  *fields.Schema
}

// Model returns the wrapped node.
func (d *NodeDescriptor) Model() any { return d.node }

// StreamQueryTags identifies every node stream by the node's UUID.
func (d *NodeDescriptor) StreamQueryTags() datastream.Tags {
	return datastream.Tags{"node": d.node.UUID}
}

// StreamTags carries the node's descriptive metadata, including device
// catalog tags when the adapter has a catalog attached.
func (d *NodeDescriptor) StreamTags() datastream.Tags {
	tags := datastream.Tags{
		"node":  d.node.UUID,
		"title": d.node.Name,
	}
	if d.node.Device != "" {
		tags["device"] = d.node.Device
		if d.adapter.deviceTags != nil {
			tags = datastream.Merge(tags, d.adapter.deviceTags(d.node.Device))
		}
	}
	return tags
}

// StreamHighestGranularity returns the finest node stream resolution.
func (d *NodeDescriptor) StreamHighestGranularity() datastream.Granularity {
	return datastream.GranularityMinutes
}

// Schema returns this descriptor's own node schema.
func (d *NodeDescriptor) Schema() *fields.Schema { return d.schema }

// ResolveModelReference resolves "primary_interface" to the node's primary
// interface object.
func (d *NodeDescriptor) ResolveModelReference(name string) (any, error) {
	if name != "primary_interface" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ResolveModelReference",
			fmt.Sprintf("node has no model reference %q", name))
	}
	iface, ok := d.node.InterfaceByName(d.node.PrimaryInterface)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ResolveModelReference",
			fmt.Sprintf("node %s has no primary interface %q", d.node.UUID, d.node.PrimaryInterface))
	}
	return iface, nil
}

// PrepareCycle refreshes the traffic sum's source list from the node's
// current interface set: both direction rates of every interface. The
// monitor calls this once per node per cycle, before walking the schema.
func (d *NodeDescriptor) PrepareCycle() error {
	field, ok := d.schema.Field(trafficField)
	if !ok {
		return errors.WrapInvalid(errors.ErrFieldNotFound, "nodes", "PrepareCycle", trafficField)
	}
	traffic, ok := field.(*fields.DynamicSumField)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "PrepareCycle",
			fmt.Sprintf("field %q is not a dynamic sum", trafficField))
	}

	traffic.ClearSourceFields()
	for _, name := range []string{"tx_rate", "rx_rate"} {
		rate, ok := d.adapter.ifaceSchema.Field(name)
		if !ok {
			return errors.WrapInvalid(errors.ErrFieldNotFound, "nodes", "PrepareCycle", name)
		}
		for _, iface := range d.node.Interfaces {
			traffic.AddSourceField(rate, d.adapter.InterfaceDescriptor(iface))
		}
	}
	return nil
}

// InterfaceDescriptor adapts an Interface for stream materialization.
type InterfaceDescriptor struct {
	adapter *Adapter
	iface   *Interface
}

// Model returns the wrapped interface.
func (d *InterfaceDescriptor) Model() any { return d.iface }

// StreamQueryTags identifies interface streams by node UUID and interface
// name.
func (d *InterfaceDescriptor) StreamQueryTags() datastream.Tags {
	return datastream.Tags{"node": d.nodeUUID(), "interface": d.iface.Name}
}

// StreamTags carries the interface's descriptive metadata.
func (d *InterfaceDescriptor) StreamTags() datastream.Tags {
	return datastream.Tags{
		"node":      d.nodeUUID(),
		"interface": d.iface.Name,
	}
}

// StreamHighestGranularity returns the finest interface stream resolution.
func (d *InterfaceDescriptor) StreamHighestGranularity() datastream.Granularity {
	return datastream.GranularityMinutes
}

// Schema returns the shared interface schema.
func (d *InterfaceDescriptor) Schema() *fields.Schema { return d.adapter.ifaceSchema }

// ResolveModelReference resolves "node" to the owning node object.
func (d *InterfaceDescriptor) ResolveModelReference(name string) (any, error) {
	if name != "node" || d.iface.Node == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ResolveModelReference",
			fmt.Sprintf("interface has no model reference %q", name))
	}
	return d.iface.Node, nil
}

func (d *InterfaceDescriptor) nodeUUID() string {
	if d.iface.Node == nil {
		return ""
	}
	return d.iface.Node.UUID
}

func float64p(v float64) *float64 { return &v }
