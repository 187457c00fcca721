// Package utils holds small helpers shared by the gateway packages.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FuncIDOffset = 15
	SetIDOffset  = 23
	AreaIDOffset = 27
)

const (
	_instIDMask = 0x00007FFF
	_funcIDMask = 0x000000FF
	_setIDMask  = 0x0000000F
	_areaIDMask = 0x0000001F
)

// NodeAddr is a dotted area.set.func.inst process address.
type NodeAddr struct {
	Area int
	Set  int
	Func int
	Inst int
}

// ParseNodeAddr parses "area.set.func.inst". area, func and inst must be
// positive; set may be zero. Each part must fit its bit field.
func ParseNodeAddr(s string) (NodeAddr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return NodeAddr{}, fmt.Errorf("node addr %q: want area.set.func.inst", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return NodeAddr{}, fmt.Errorf("node addr %q: %w", s, err)
		}
		v[i] = n
	}
	a := NodeAddr{Area: v[0], Set: v[1], Func: v[2], Inst: v[3]}
	if a.Area <= 0 || a.Set < 0 || a.Func <= 0 || a.Inst <= 0 {
		return NodeAddr{}, fmt.Errorf("node addr %q: invalid", s)
	}
	if a.Area > _areaIDMask || a.Set > _setIDMask || a.Func > _funcIDMask || a.Inst > _instIDMask {
		return NodeAddr{}, fmt.Errorf("node addr %q: max is %d.%d.%d.%d", s, _areaIDMask, _setIDMask, _funcIDMask, _instIDMask)
	}
	return a, nil
}

// Pack lays the address out as area:5 set:4 func:8 inst:15 bits.
func (a NodeAddr) Pack() uint32 {
	return uint32(a.Inst&_instIDMask) |
		uint32(a.Func&_funcIDMask)<<FuncIDOffset |
		uint32(a.Set&_setIDMask)<<SetIDOffset |
		uint32(a.Area&_areaIDMask)<<AreaIDOffset
}

// UnpackNodeAddr reverses Pack.
func UnpackNodeAddr(id uint32) NodeAddr {
	return NodeAddr{
		Area: int((id >> AreaIDOffset) & _areaIDMask),
		Set:  int((id >> SetIDOffset) & _setIDMask),
		Func: int((id >> FuncIDOffset) & _funcIDMask),
		Inst: int(id & _instIDMask),
	}
}

func (a NodeAddr) String() string {
	var sb strings.Builder
	sb.Grow(16)
	sb.WriteString(strconv.Itoa(a.Area))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(a.Set))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(a.Func))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(a.Inst))
	return sb.String()
}
