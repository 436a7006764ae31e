// Package ahocorasick implements a multi-pattern Aho-Corasick automaton
// carrying a uint32 value per pattern, overlapping-match iteration, and a
// compact binary (de)serialization. It is hand-rolled rather than pulled
// from an off-the-shelf library: see DESIGN.md for why no library in the
// retrieval pack exposes "overlapping matches + per-pattern value + custom
// on-disk header" as a single dependency.
package ahocorasick

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Entry is one pattern to compile into the automaton.
type Entry struct {
	Pattern []byte
	Value   uint32
}

type output struct {
	length int32
	value  uint32
}

type state struct {
	children map[byte]int32
	fail     int32
	outputs  []output
	// outputLink points to the nearest proper suffix state (via the fail
	// chain) that has at least one output of its own, or -1. This lets
	// FindOverlapping enumerate every match ending at a position without
	// re-walking the whole fail chain each time.
	outputLink int32
}

// Automaton is an immutable, built Aho-Corasick automaton.
type Automaton struct {
	states []state
}

const rootState = 0

// Build constructs an automaton from the given entries. Patterns may be
// empty only if the caller truly wants to match at every position; callers
// in this repo filter out empty patterns before calling Build (spec §4.C).
func Build(entries []Entry) *Automaton {
	a := &Automaton{states: []state{{children: map[byte]int32{}, fail: -1, outputLink: -1}}}

	for _, e := range entries {
		a.insert(e.Pattern, e.Value)
	}
	a.buildFailLinks()
	return a
}

func (a *Automaton) insert(pattern []byte, value uint32) {
	cur := int32(rootState)
	for _, b := range pattern {
		next, ok := a.states[cur].children[b]
		if !ok {
			a.states = append(a.states, state{children: map[byte]int32{}, fail: -1, outputLink: -1})
			next = int32(len(a.states) - 1)
			a.states[cur].children[b] = next
		}
		cur = next
	}
	a.states[cur].outputs = append(a.states[cur].outputs, output{length: int32(len(pattern)), value: value})
}

func (a *Automaton) buildFailLinks() {
	a.states[rootState].fail = rootState
	queue := make([]int32, 0, len(a.states))

	for _, child := range a.states[rootState].children {
		a.states[child].fail = rootState
		queue = append(queue, child)
	}

	for head := 0; head < len(queue); head++ {
		s := queue[head]
		for b, child := range a.states[s].children {
			queue = append(queue, child)

			f := a.states[s].fail
			for f != rootState {
				if next, ok := a.states[f].children[b]; ok {
					f = next
					break
				}
				f = a.states[f].fail
			}
			if f == rootState {
				if next, ok := a.states[rootState].children[b]; ok && next != child {
					f = next
				}
			}
			a.states[child].fail = f

			if len(a.states[f].outputs) > 0 {
				a.states[child].outputLink = f
			} else {
				a.states[child].outputLink = a.states[f].outputLink
			}
		}
	}
}

func (a *Automaton) next(s int32, b byte) int32 {
	for {
		if child, ok := a.states[s].children[b]; ok {
			return child
		}
		if s == rootState {
			return rootState
		}
		s = a.states[s].fail
	}
}

// Match is a single occurrence reported by FindOverlapping.
type Match struct {
	Start  int
	Length int
	Value  uint32
}

// FindOverlapping scans text once and reports every pattern occurrence,
// including overlapping ones (a byte position may end several patterns of
// different lengths). Scanning stops early if yield returns false.
func (a *Automaton) FindOverlapping(text []byte, yield func(Match) bool) {
	s := int32(rootState)
	for i, b := range text {
		s = a.next(s, b)

		for node := s; node != -1; {
			st := &a.states[node]
			if len(st.outputs) > 0 {
				for _, out := range st.outputs {
					start := i + 1 - int(out.length)
					if !yield(Match{Start: start, Length: int(out.length), Value: out.value}) {
						return
					}
				}
				node = st.outputLink
			} else {
				node = st.outputLink
			}
		}
	}
}

// magic identifies the automaton's own serialization, distinct from the
// DAC file's outer "DAC"0x01 + hash header (component C writes that header
// around this payload).
var magic = [4]byte{'A', 'h', 'C', 1}

// Serialize encodes the automaton into the opaque binary form that
// component C embeds in a DAC file after the magic+hash header.
func (a *Automaton) Serialize() []byte {
	buf := make([]byte, 0, 1024)
	buf = append(buf, magic[:]...)
	buf = appendUint32(buf, uint32(len(a.states)))

	for _, st := range a.states {
		buf = appendUint32(buf, uint32(st.fail))
		buf = appendUint32(buf, uint32(int32ToU32(st.outputLink)))

		buf = appendUint32(buf, uint32(len(st.children)))
		for b, child := range st.children {
			buf = append(buf, b)
			buf = appendUint32(buf, uint32(child))
		}

		buf = appendUint32(buf, uint32(len(st.outputs)))
		for _, out := range st.outputs {
			buf = appendUint32(buf, uint32(out.length))
			buf = appendUint32(buf, out.value)
		}
	}
	return buf
}

func int32ToU32(v int32) uint32 { return uint32(v) }

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Deserialize parses bytes produced by Serialize. data may be a
// memory-mapped, read-only byte slice; Deserialize copies out of it into
// ordinary Go slices so the Automaton remains valid after the mapping is
// released by the caller (component D keeps the mapping alive for the
// process lifetime regardless).
func Deserialize(data []byte) (*Automaton, error) {
	if len(data) < 8 || [4]byte{data[0], data[1], data[2], data[3]} != magic {
		return nil, errors.New("ahocorasick: bad magic")
	}
	r := reader{buf: data, pos: 4}

	numStates, err := r.u32()
	if err != nil {
		return nil, err
	}

	states := make([]state, numStates)
	for i := range states {
		fail, err := r.u32()
		if err != nil {
			return nil, err
		}
		outputLink, err := r.u32()
		if err != nil {
			return nil, err
		}

		numChildren, err := r.u32()
		if err != nil {
			return nil, err
		}
		children := make(map[byte]int32, numChildren)
		for c := uint32(0); c < numChildren; c++ {
			b, err := r.byte()
			if err != nil {
				return nil, err
			}
			child, err := r.u32()
			if err != nil {
				return nil, err
			}
			children[b] = int32(child)
		}

		numOutputs, err := r.u32()
		if err != nil {
			return nil, err
		}
		outputs := make([]output, numOutputs)
		for o := range outputs {
			length, err := r.u32()
			if err != nil {
				return nil, err
			}
			value, err := r.u32()
			if err != nil {
				return nil, err
			}
			outputs[o] = output{length: int32(length), value: value}
		}

		states[i] = state{
			children:   children,
			fail:       int32(fail),
			outputLink: int32(outputLink),
			outputs:    outputs,
		}
	}

	return &Automaton{states: states}, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("ahocorasick: truncated at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("ahocorasick: truncated at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// NumStates reports the number of automaton states, exposed for tests and
// diagnostics (e.g. dacgen --dump).
func (a *Automaton) NumStates() int { return len(a.states) }
