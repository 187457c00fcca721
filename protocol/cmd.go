// Package protocol defines the commands exchanged with logic servers and
// their bodies in protobuf wire format.
package protocol

import "strconv"

// Cmd is the u32 command id carried in a frame head.
type Cmd uint32

const (
	CmdLogin            Cmd = 3280140517
	CmdLoginReply       Cmd = 966232901
	CmdDownstream       Cmd = 1648565662
	CmdKickPlayer       Cmd = 2806502720
	CmdSetPlayerSlave   Cmd = 1999458104
	CmdSetPlayerPrimary Cmd = 2933402823
	CmdUpstream         Cmd = 1394652464
	CmdClientDisconnect Cmd = 3139371430
)

var _cmdNames = map[Cmd]string{
	CmdLogin:            "LOGIN",
	CmdLoginReply:       "LOGIN_REPLY",
	CmdDownstream:       "DOWNSTREAM",
	CmdKickPlayer:       "KICK_PLAYER",
	CmdSetPlayerSlave:   "SET_PLAYER_SLAVE",
	CmdSetPlayerPrimary: "SET_PLAYER_PRIMARY",
	CmdUpstream:         "UPSTREAM",
	CmdClientDisconnect: "CLIENT_DISCONNECT",
}

func (c Cmd) String() string {
	if name, ok := _cmdNames[c]; ok {
		return name
	}
	return "CMD_" + strconv.FormatUint(uint64(c), 10)
}

// Known reports whether c is one of the commands above.
func (c Cmd) Known() bool {
	_, ok := _cmdNames[c]
	return ok
}
