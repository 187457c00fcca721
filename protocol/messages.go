package protocol

import "google.golang.org/protobuf/proto"

//go:generate protoc -I.. --go_out=.. --go_opt=paths=source_relative ../protocol/gatesvr.proto

// Message is a command body.
type Message interface {
	proto.Message
	Cmd() Cmd
}

func (*LogicServerLogin) Cmd() Cmd      { return CmdLogin }
func (*LogicServerLoginReply) Cmd() Cmd { return CmdLoginReply }
func (*Downstream) Cmd() Cmd            { return CmdDownstream }
func (*KickPlayer) Cmd() Cmd            { return CmdKickPlayer }
func (*SetPlayerSlave) Cmd() Cmd        { return CmdSetPlayerSlave }
func (*SetPlayerPrimary) Cmd() Cmd      { return CmdSetPlayerPrimary }
func (*Upstream) Cmd() Cmd              { return CmdUpstream }
func (*ClientDisconnect) Cmd() Cmd      { return CmdClientDisconnect }
