package grid

import "sort"

// Peer is one grid member as named in the configuration.
type Peer struct {
	Name         string
	Address      string
	NotifyHandle string
}

// Roster is the grid membership from this node's point of view: its own
// name plus every other member, name-sorted. It is built once at startup
// and never changes.
type Roster struct {
	self   string
	others []Peer
	byName map[string]Peer
}

// New builds a Roster for the node named self. Entries whose name equals
// self are dropped from the watched set; a node never polls itself.
func New(self string, members []Peer) *Roster {
	r := &Roster{self: self, byName: make(map[string]Peer, len(members))}
	for _, p := range members {
		if p.Name == self {
			continue
		}
		r.others = append(r.others, p)
		r.byName[p.Name] = p
	}
	sort.Slice(r.others, func(i, j int) bool { return r.others[i].Name < r.others[j].Name })
	return r
}

// Self returns this node's grid name.
func (r *Roster) Self() string { return r.self }

// Others returns every watched peer, name-sorted. Callers must not
// modify the returned slice.
func (r *Roster) Others() []Peer { return r.others }

// Peer returns the watched peer with the given name.
func (r *Roster) Peer(name string) (Peer, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Has reports whether name is a grid member, self included.
func (r *Roster) Has(name string) bool {
	if name == r.self {
		return true
	}
	_, ok := r.byName[name]
	return ok
}

// Size returns the grid size including this node.
func (r *Roster) Size() int { return len(r.others) + 1 }
