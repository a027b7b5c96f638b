package nodes

// Node is one monitored network node. Telemetry attributes are pointers (or
// nilable containers): nil means the collector has no value for the current
// cycle, which skips the datapoint but keeps the stream.
type Node struct {
	UUID             string `yaml:"uuid"`
	Name             string `yaml:"name"`
	Device           string `yaml:"device"`
	PrimaryInterface string `yaml:"primary_interface"`

	Interfaces []*Interface `yaml:"interfaces"`

	RTT      *float64       `yaml:"-" datastream:"rtt"`
	Uptime   *int64         `yaml:"-" datastream:"uptime"`
	Clients  *int64         `yaml:"-" datastream:"clients"`
	LoadAvg  *float64       `yaml:"-" datastream:"load_avg"`
	Channels []int          `yaml:"-" datastream:"wifi_channels"`
	Status   *string        `yaml:"-" datastream:"status"`
	Topology map[string]any `yaml:"-" datastream:"topology"`
}

// Interface is one network interface of a node.
type Interface struct {
	Name string `yaml:"name"`

	// Node is backfilled after inventory load.
	Node *Node `yaml:"-"`

	TxBytes *int64 `yaml:"-" datastream:"tx_bytes"`
	RxBytes *int64 `yaml:"-" datastream:"rx_bytes"`
}

// InterfaceByName returns the node's interface with the given name.
func (n *Node) InterfaceByName(name string) (*Interface, bool) {
	for _, iface := range n.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return nil, false
}
