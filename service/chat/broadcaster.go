package chat

import (
	"PPCollab/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Broadcaster fans envelopes out over the registry and the room index. It
// holds no lock of its own; every lookup works on a snapshot.
type Broadcaster struct {
	conns *ConnManager
	rooms *RoomIndex
	log   *zap.Logger
}

func NewBroadcaster(conns *ConnManager, rooms *RoomIndex) *Broadcaster {
	return &Broadcaster{conns: conns, rooms: rooms, log: logger.Named("broadcast")}
}

// Unicast delivers env to every live connection of userID and returns the
// number of successful writes. Dead connections are pruned on the way.
func (b *Broadcaster) Unicast(userID string, env Envelope) int {
	data, err := Encode(env)
	if err != nil {
		b.log.Error("unicast encode", zap.String("user", userID), zap.Error(err))
		return 0
	}
	return b.deliver(userID, data)
}

// RoomBroadcast delivers env to each member of roomID except excludeUserID
// (empty excludes nobody). The envelope is encoded once.
func (b *Broadcaster) RoomBroadcast(roomID string, env Envelope, excludeUserID string) int {
	members := b.rooms.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}
	data, err := Encode(env)
	if err != nil {
		b.log.Error("room encode", zap.String("room", roomID), zap.Error(err))
		return 0
	}
	n := 0
	for _, u := range members {
		if u == excludeUserID {
			continue
		}
		n += b.deliver(u, data)
	}
	b.log.Debug("room broadcast",
		zap.String("room", roomID), zap.String("type", env.Kind()),
		zap.Int("members", len(members)), zap.Int("delivered", n))
	return n
}

// SendTo writes env to one connection only. A frame that cannot be encoded
// reports SendDead without touching the connection.
func (b *Broadcaster) SendTo(c *Conn, env Envelope) SendResult {
	data, err := Encode(env)
	if err != nil {
		b.log.Error("send encode", zap.Stringer("conn", c), zap.Error(err))
		return SendDead
	}
	r := c.Send(data)
	if r == SendDead {
		b.Drop(c)
	}
	return r
}

// PublishTaskUpdate is the entry point for committed task mutations coming
// from outside the websocket protocol. Every room member receives it.
func (b *Broadcaster) PublishTaskUpdate(roomID, taskID, action, actorID string, data any) int {
	return b.RoomBroadcast(roomID, TaskUpdate(taskID, roomID, action, actorID, data), "")
}

// Drop removes c from the registry and closes it. Only the call that removed
// the user's last connection cascades: the user leaves every room and each
// room gets one offline presence. Safe to call any number of times.
func (b *Broadcaster) Drop(c *Conn) {
	if c == nil {
		return
	}
	last := b.conns.Disconnect(c.UserID, c)
	c.Close(websocket.CloseGoingAway, "")
	if !last {
		return
	}
	left := b.rooms.LeaveAll(c.UserID)
	for _, roomID := range left {
		b.RoomBroadcast(roomID, Presence(c.UserID, roomID, StatusOffline), "")
	}
	b.log.Info("user offline", zap.String("user", c.UserID), zap.Strings("rooms", left))
}

func (b *Broadcaster) deliver(userID string, data []byte) int {
	n := 0
	for _, c := range b.conns.Conns(userID) {
		if c.Send(data) == SendDead {
			b.log.Debug("prune dead conn", zap.Stringer("conn", c))
			b.Drop(c)
			continue
		}
		n++
	}
	return n
}
