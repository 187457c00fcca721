package protocol

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCmd is returned by CreateMsg for an unregistered command.
var ErrUnknownCmd = errors.New("protocol: unknown cmd")

// MsgProtoInfo describes one registered command.
type MsgProtoInfo struct {
	Cmd Cmd
	New func() Message
}

// MessageManager maps command ids to body factories.
type MessageManager struct {
	PropInfoMap map[Cmd]*MsgProtoInfo
}

func NewMessageManager() *MessageManager {
	return &MessageManager{
		PropInfoMap: make(map[Cmd]*MsgProtoInfo),
	}
}

// RegisterMsgInfo adds or replaces pi. Entries without a factory are ignored.
func (m *MessageManager) RegisterMsgInfo(pi *MsgProtoInfo) {
	if pi == nil || pi.New == nil {
		return
	}
	m.PropInfoMap[pi.Cmd] = pi
}

func (m *MessageManager) GetProtoInfo(cmd Cmd) (*MsgProtoInfo, bool) {
	info, ok := m.PropInfoMap[cmd]
	return info, ok
}

// CreateMsg returns an empty body for cmd.
func (m *MessageManager) CreateMsg(cmd Cmd) (Message, error) {
	info, ok := m.GetProtoInfo(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCmd, uint32(cmd))
	}
	return info.New(), nil
}

func (m *MessageManager) ContainsMsg(cmd Cmd) bool {
	_, ok := m.GetProtoInfo(cmd)
	return ok
}

// GetAllMsgList lists the registered commands accepted by checkFunc in
// ascending order.
func (m *MessageManager) GetAllMsgList(checkFunc func(protoInfo *MsgProtoInfo) bool) []Cmd {
	cmds := make([]Cmd, 0, len(m.PropInfoMap))
	for cmd, info := range m.PropInfoMap {
		if checkFunc != nil && !checkFunc(info) {
			continue
		}
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

var _defaultMgr = newDefaultMessageManager()

func newDefaultMessageManager() *MessageManager {
	mgr := NewMessageManager()
	for _, newFn := range []func() Message{
		func() Message { return &LogicServerLogin{} },
		func() Message { return &LogicServerLoginReply{} },
		func() Message { return &Downstream{} },
		func() Message { return &KickPlayer{} },
		func() Message { return &SetPlayerSlave{} },
		func() Message { return &SetPlayerPrimary{} },
		func() Message { return &Upstream{} },
		func() Message { return &ClientDisconnect{} },
	} {
		mgr.RegisterMsgInfo(&MsgProtoInfo{Cmd: newFn().Cmd(), New: newFn})
	}
	return mgr
}

// NewMessage creates an empty body for one of the built-in commands.
func NewMessage(cmd Cmd) (Message, error) {
	return _defaultMgr.CreateMsg(cmd)
}

// DefaultMessageManager is the registry behind NewMessage.
func DefaultMessageManager() *MessageManager {
	return _defaultMgr
}
