package nodes

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mitjajez/nodewatcher/errors"
)

// Inventory is the static set of monitored nodes. The node record store
// proper is an external system; a flat file is enough to feed a monitoring
// deployment and keeps record management out of this module.
type Inventory struct {
	Nodes []*Node `yaml:"nodes"`

	byUUID map[string]*Node
}

// LoadInventory reads and validates an inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "nodes", "LoadInventory", fmt.Sprintf("read %s", path))
	}
	return ParseInventory(data)
}

// ParseInventory parses and validates inventory YAML.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, errors.WrapInvalid(err, "nodes", "ParseInventory", "unmarshal inventory")
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}
	inv.index()
	return &inv, nil
}

func (inv *Inventory) validate() error {
	seen := make(map[string]struct{}, len(inv.Nodes))
	for i, node := range inv.Nodes {
		if node == nil {
			return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ParseInventory",
				fmt.Sprintf("node %d is empty", i))
		}
		if _, err := uuid.Parse(node.UUID); err != nil {
			return errors.WrapInvalid(err, "nodes", "ParseInventory",
				fmt.Sprintf("node %d: invalid uuid %q", i, node.UUID))
		}
		if _, dup := seen[node.UUID]; dup {
			return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ParseInventory",
				fmt.Sprintf("duplicate node uuid %s", node.UUID))
		}
		seen[node.UUID] = struct{}{}

		names := make(map[string]struct{}, len(node.Interfaces))
		for _, iface := range node.Interfaces {
			if iface.Name == "" {
				return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ParseInventory",
					fmt.Sprintf("node %s: interface with empty name", node.UUID))
			}
			if _, dup := names[iface.Name]; dup {
				return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ParseInventory",
					fmt.Sprintf("node %s: duplicate interface %q", node.UUID, iface.Name))
			}
			names[iface.Name] = struct{}{}
		}
		if node.PrimaryInterface != "" {
			if _, ok := names[node.PrimaryInterface]; !ok {
				return errors.WrapInvalid(errors.ErrInvalidData, "nodes", "ParseInventory",
					fmt.Sprintf("node %s: primary interface %q not declared", node.UUID, node.PrimaryInterface))
			}
		}
	}
	return nil
}

// index backfills interface back-references and builds the UUID lookup.
func (inv *Inventory) index() {
	inv.byUUID = make(map[string]*Node, len(inv.Nodes))
	for _, node := range inv.Nodes {
		inv.byUUID[node.UUID] = node
		for _, iface := range node.Interfaces {
			iface.Node = node
		}
	}
}

// NodeByUUID returns the node with the given UUID.
func (inv *Inventory) NodeByUUID(id string) (*Node, bool) {
	node, ok := inv.byUUID[id]
	return node, ok
}

// ListModels returns the nodes as monitoring models, in inventory order.
func (inv *Inventory) ListModels() []any {
	models := make([]any, len(inv.Nodes))
	for i, node := range inv.Nodes {
		models[i] = node
	}
	return models
}
