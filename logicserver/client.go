package logicserver

import "context"

// ClientSession is the part of a client connection logic servers drive.
type ClientSession interface {
	// SendBinary frames payload as message msgID to the client. Called on
	// the client's loop it sends before returning and does not keep
	// payload; called elsewhere it posts and keeps payload, which must
	// then stay unmodified.
	SendBinary(ctx context.Context, msgID uint32, payload []byte) error
	// IsInLoop reports whether ctx runs on the client's owning loop.
	IsInLoop(ctx context.Context) bool
	// SetPrimaryServerID and SetSlaveServerID store the whole field at
	// once; -1 means unassigned.
	SetPrimaryServerID(id int64)
	SetSlaveServerID(id int64)
}

// ClientRegistry looks clients up by runtime id.
type ClientRegistry interface {
	FindByRuntimeID(id int64) (ClientSession, bool)
	KickByRuntimeID(id int64)
	// KickAllOfPrimary disconnects every client whose primary server is
	// logicServerID.
	KickAllOfPrimary(logicServerID int64)
}
