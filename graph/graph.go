// Package graph implements the synthesis graph: an arena of nodes which
// produce waveforms on demand and pull them from their dependents.
//
// Nodes are addressed by generation-checked handles and reference counted.
// A constructor which accepts a child takes over the caller's reference to
// it. To feed one node into several parents, Retain it and attach the extra
// reference. Every node is evaluated at most once per Generate call and
// all parents receive the same cached waveform.
//
// Graph is not safe for concurrent use.
package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/waveform"
)

var (
	// ErrArity is returned when node has wrong number of dependents.
	ErrArity = errors.New("wrong number of dependents")
	// ErrStaleHandle is returned when handle refers to released node.
	ErrStaleHandle = errors.New("stale node handle")
	// ErrZeroFrequency is returned when pitch shift source frequency is zero.
	ErrZeroFrequency = errors.New("zero source frequency")
	// ErrNonFinite is returned when requested duration is not finite.
	ErrNonFinite = errors.New("non-finite duration")
	// ErrRequestMismatch is returned when node is requested with different
	// duration or rate within one Generate call.
	ErrRequestMismatch = errors.New("different request within one tick")
	// ErrWrongRole is returned when operation is not supported by the node.
	ErrWrongRole = errors.New("operation not supported by node")
)

// Handle refers to a node of the graph. Zero handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether handle was never assigned.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("node(%d:%d)", h.index, h.gen)
}

type node struct {
	gen      uint32
	refs     int
	children []Handle
	state    role

	// per-tick cache
	tick     uint64
	duration float64
	rate     float64
	result   waveform.Waveform
	err      error
	liveTick uint64
	live     bool
}

// Graph is an arena of synthesis nodes.
type Graph struct {
	log.Logger
	nodes []node
	free  []uint32
	tick  uint64
	alive int
	// generating is set during Generate, liveness is cached per tick only then
	generating bool
}

// New returns empty graph.
func New() *Graph {
	return &Graph{
		Logger: log.Component("graph"),
	}
}

// Len returns number of live nodes.
func (g *Graph) Len() int {
	return g.alive
}

func (g *Graph) add(state role, children ...Handle) Handle {
	var index uint32
	if n := len(g.free); n > 0 {
		index = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.nodes = append(g.nodes, node{})
		index = uint32(len(g.nodes) - 1)
	}
	n := &g.nodes[index]
	n.gen++
	n.refs = 1
	n.state = state
	n.children = append(n.children[:0], children...)
	n.tick = 0
	n.liveTick = 0
	n.result = waveform.Waveform{}
	n.err = nil
	g.alive++
	return Handle{index: index, gen: n.gen}
}

func (g *Graph) node(h Handle) (*node, error) {
	if h.IsZero() || int(h.index) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	n := &g.nodes[h.index]
	if n.gen != h.gen || n.refs == 0 {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	return n, nil
}

func (g *Graph) validate(handles ...Handle) error {
	for _, h := range handles {
		if _, err := g.node(h); err != nil {
			return err
		}
	}
	return nil
}

// Role returns role of the node.
func (g *Graph) Role(h Handle) (Role, error) {
	n, err := g.node(h)
	if err != nil {
		return 0, err
	}
	return n.state.role(), nil
}

// Children returns handles of node dependents.
func (g *Graph) Children(h Handle) ([]Handle, error) {
	n, err := g.node(h)
	if err != nil {
		return nil, err
	}
	return append([]Handle(nil), n.children...), nil
}

// Attach makes child a dependent of parent. Parent takes over the caller's
// reference to child.
func (g *Graph) Attach(parent, child Handle) error {
	if err := g.validate(child); err != nil {
		return err
	}
	p, err := g.node(parent)
	if err != nil {
		return err
	}
	p.children = append(p.children, child)
	return nil
}

// Detach removes child from parent dependents and releases the parent's
// reference to it.
func (g *Graph) Detach(parent, child Handle) error {
	p, err := g.node(parent)
	if err != nil {
		return err
	}
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return g.Release(child)
		}
	}
	return fmt.Errorf("%w: %v is not a dependent of %v", ErrStaleHandle, child, parent)
}

// Retain adds a reference to the node and returns the same handle.
func (g *Graph) Retain(h Handle) (Handle, error) {
	n, err := g.node(h)
	if err != nil {
		return Handle{}, err
	}
	n.refs++
	return h, nil
}

// Release drops a reference. Node without references is freed together with
// references it holds to its dependents.
func (g *Graph) Release(h Handle) error {
	n, err := g.node(h)
	if err != nil {
		return err
	}
	n.refs--
	if n.refs > 0 {
		return nil
	}
	children := n.children
	g.Debugf("%v %v released", n.state.role(), h)
	n.children = nil
	n.state = nil
	n.result = waveform.Waveform{}
	g.free = append(g.free, h.index)
	g.alive--
	for _, c := range children {
		if err := g.Release(c); err != nil {
			return err
		}
	}
	return nil
}

// Generate starts a new tick and returns waveforms of provided roots. Each
// waveform spans [0, duration] with samples at 1/rate intervals.
func (g *Graph) Generate(duration, rate float64, roots ...Handle) ([]waveform.Waveform, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNonFinite, duration)
	}
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: rate %v", ErrNonFinite, rate)
	}
	g.tick++
	g.generating = true
	defer func() { g.generating = false }()
	result := make([]waveform.Waveform, 0, len(roots))
	for _, h := range roots {
		w, err := g.generate(h, duration, rate)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, nil
}

// GenerateSound is a shortcut for single root Generate.
func (g *Graph) GenerateSound(h Handle, duration, rate float64) (waveform.Waveform, error) {
	result, err := g.Generate(duration, rate, h)
	if err != nil {
		return waveform.Waveform{}, err
	}
	return result[0], nil
}

func (g *Graph) generate(h Handle, duration, rate float64) (waveform.Waveform, error) {
	n, err := g.node(h)
	if err != nil {
		return waveform.Waveform{}, err
	}
	if n.tick == g.tick {
		if n.duration != duration || n.rate != rate {
			return waveform.Waveform{}, fmt.Errorf("%w: %v asked for %v at %v, then %v at %v",
				ErrRequestMismatch, h, n.duration, n.rate, duration, rate)
		}
		return n.result, n.err
	}
	w, err := g.evaluate(n, duration, rate)
	// node could move if arena grew, look it up again
	n = &g.nodes[h.index]
	n.tick = g.tick
	n.duration = duration
	n.rate = rate
	n.result = w
	n.err = err
	return w, err
}

// live reports if node has more sound. During Generate the answer is fixed
// for the tick once asked, so all parents see the same state.
func (g *Graph) live(h Handle) bool {
	n, err := g.node(h)
	if err != nil {
		return false
	}
	if !g.generating {
		return g.more(n)
	}
	if n.liveTick == g.tick {
		return n.live
	}
	more := g.more(n)
	n.liveTick = g.tick
	n.live = more
	return more
}

// MoreSoundAvailable reports if node will produce any sound in future
// ticks.
func (g *Graph) MoreSoundAvailable(h Handle) (bool, error) {
	n, err := g.node(h)
	if err != nil {
		return false, err
	}
	return g.more(n), nil
}

// PruneDeadBranches detaches dependents of a mixer which have no more sound
// and recurses into live mixer dependents. It returns number of pruned
// branches.
func (g *Graph) PruneDeadBranches(h Handle) (int, error) {
	n, err := g.node(h)
	if err != nil {
		return 0, err
	}
	if _, ok := n.state.(*mixer); !ok {
		return 0, fmt.Errorf("%w: prune %v on %v", ErrWrongRole, n.state.role(), h)
	}
	var dead, alive []Handle
	for _, c := range n.children {
		cn, err := g.node(c)
		if err != nil {
			return 0, err
		}
		if g.more(cn) {
			alive = append(alive, c)
		} else {
			dead = append(dead, c)
		}
	}
	pruned := 0
	for _, c := range dead {
		if err := g.Detach(h, c); err != nil {
			return pruned, err
		}
		pruned++
	}
	for _, c := range alive {
		cn, _ := g.node(c)
		if _, ok := cn.state.(*mixer); !ok {
			continue
		}
		p, err := g.PruneDeadBranches(c)
		pruned += p
		if err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}

// single returns the only dependent of the node.
func single(n *node) (Handle, error) {
	if len(n.children) != 1 {
		return Handle{}, fmt.Errorf("%w: %v expects 1, got %d", ErrArity, n.state.role(), len(n.children))
	}
	return n.children[0], nil
}

func none(n *node) error {
	if len(n.children) != 0 {
		return fmt.Errorf("%w: %v expects none, got %d", ErrArity, n.state.role(), len(n.children))
	}
	return nil
}
