package ctt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultSlotsPerIru            = 9
	DefaultNodesPerBlade          = 4
	DefaultAlternatePrefix        = "la"
	DefaultAlternateNodesPerBlade = 2
)

var nodeNamePattern = regexp.MustCompile(`^[rR]([0-9]+)[iI]([0-9]+)[nN]([0-9]+)$`)

// Node is a parsed r<rack>i<iru>n<node> identifier.
type Node struct {
	Rack int
	Iru  int
	Slot int
}

func (n Node) String() string {
	return fmt.Sprintf("r%di%dn%d", n.Rack, n.Iru, n.Slot)
}

func ParseNode(name string) (Node, error) {
	m := nodeNamePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return Node{}, fmt.Errorf("%w: %q", ErrInvalidNodeName, name)
	}

	var parts [3]int
	for i := range parts {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Node{}, fmt.Errorf("%w: %q", ErrInvalidNodeName, name)
		}
		parts[i] = v
	}
	return Node{Rack: parts[0], Iru: parts[1], Slot: parts[2]}, nil
}

// Topology describes how nodes share a physical blade.
type Topology struct {
	SlotsPerIru   int
	NodesPerBlade int
}

func DefaultTopology() Topology {
	return Topology{SlotsPerIru: DefaultSlotsPerIru, NodesPerBlade: DefaultNodesPerBlade}
}

// TopologySettings mirrors the topology section of the configuration.
type TopologySettings struct {
	SlotsPerIru            int
	NodesPerBlade          int
	AlternatePrefix        string
	AlternateNodesPerBlade int
}

// TopologyForHost picks the blade layout for the machine ctt runs on: hosts whose
// name starts with the alternate prefix use the alternate blade width.
func TopologyForHost(hostname string, s TopologySettings) Topology {
	t := Topology{SlotsPerIru: s.SlotsPerIru, NodesPerBlade: s.NodesPerBlade}
	if t.SlotsPerIru <= 0 {
		t.SlotsPerIru = DefaultSlotsPerIru
	}
	if t.NodesPerBlade <= 0 {
		t.NodesPerBlade = DefaultNodesPerBlade
	}
	if s.AlternatePrefix != "" && strings.HasPrefix(hostname, s.AlternatePrefix) {
		t.NodesPerBlade = s.AlternateNodesPerBlade
		if t.NodesPerBlade <= 0 {
			t.NodesPerBlade = DefaultAlternateNodesPerBlade
		}
	}
	return t
}

// Siblings returns every node on the same blade as name, name included, in blade
// order and without duplicates.
func (t Topology) Siblings(name string) ([]string, error) {
	node, err := ParseNode(name)
	if err != nil {
		return nil, err
	}

	slots := t.SlotsPerIru
	if slots <= 0 {
		slots = DefaultSlotsPerIru
	}

	out := make([]string, 0, t.NodesPerBlade)
	seen := make(map[string]struct{}, t.NodesPerBlade)
	for i := 0; i < t.NodesPerBlade; i++ {
		sib := Node{Rack: node.Rack, Iru: node.Iru, Slot: node.Slot%slots + i*slots}.String()
		if _, ok := seen[sib]; ok {
			continue
		}
		seen[sib] = struct{}{}
		out = append(out, sib)
	}
	return out, nil
}
