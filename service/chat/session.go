package chat

import (
	"net"
	"sync"
	"sync/atomic"

	"PPCollab/tools/errs"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the protocol state machine of one authenticated socket.
type Session struct {
	srv  *Server
	conn *Conn
	ws   *websocket.Conn

	state     atomic.Int32
	closeOnce sync.Once
	log       *zap.Logger
}

func newSession(srv *Server, conn *Conn, ws *websocket.Conn) *Session {
	s := &Session{
		srv:  srv,
		conn: conn,
		ws:   ws,
		log:  srv.log.With(zap.String("user", conn.UserID), zap.String("conn", conn.ConnID)),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

// run blocks until the socket is gone. Cleanup always runs, panics included.
func (s *Session) run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session panic", zap.Error(errs.ErrPanic(r)))
		}
		s.close()
	}()

	s.open()
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.logReadErr(err)
			return
		}
		if s.State() != StateOpen {
			return
		}

		in, perr := ParseInbound(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			s.log.Warn("bad frame", zap.Error(perr), zap.ByteString("sample", sample), zap.Int("len", len(data)))
			s.srv.bc.SendTo(s.conn, Error(perr))
			continue
		}
		s.dispatch(in)
	}
}

func (s *Session) open() {
	s.srv.conns.Connect(s.conn.UserID, s.conn)
	s.state.Store(int32(StateOpen))
	s.srv.bc.SendTo(s.conn, Connection(s.conn.UserID))
	s.log.Info("session open", zap.String("remote", s.conn.Remote))
}

func (s *Session) dispatch(in Inbound) {
	me := s.conn.UserID
	bc := s.srv.bc

	switch f := in.(type) {
	case JoinTeam:
		// 连接已被清理则不再入房，否则会留下离线成员
		joined := s.srv.conns.WhileRegistered(s.conn, func() {
			s.srv.rooms.Join(me, f.RoomID)
		})
		if !joined {
			s.log.Debug("join after drop ignored", zap.String("room", f.RoomID))
			return
		}
		bc.SendTo(s.conn, RoomJoined(f.RoomID, s.srv.conns.OnlineUsers()))
		bc.RoomBroadcast(f.RoomID, Presence(me, f.RoomID, StatusOnline), "")
	case LeaveTeam:
		s.srv.rooms.Leave(me, f.RoomID)
		bc.RoomBroadcast(f.RoomID, Presence(me, f.RoomID, StatusOffline), "")
	case TaskUpdateRequest:
		var data any
		if len(f.Data) > 0 {
			data = f.Data
		}
		bc.RoomBroadcast(f.RoomID, TaskUpdate(f.TaskID, f.RoomID, f.Action, me, data), me)
	case TypingRequest:
		bc.RoomBroadcast(f.RoomID, Typing(me, f.RoomID, f.TaskID, f.IsTyping), me)
	case CursorPosition:
		bc.RoomBroadcast(f.RoomID, CursorUpdate(me, f.RoomID, f.Position), me)
	case Ping:
		bc.SendTo(s.conn, Pong())
	default:
		s.log.Warn("no handler for frame", zap.Any("frame", in))
	}
}

// close moves the session to Closed and hands the connection to the single
// cleanup path. Runs once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("session cleanup panic", zap.Error(errs.ErrPanic(r)))
			}
		}()
		s.state.Store(int32(StateClosed))
		s.srv.bc.Drop(s.conn)
		s.log.Info("session closed")
	})
}

func (s *Session) logReadErr(err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		s.log.Info("peer closed", zap.Error(err))
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		s.log.Info("read timeout", zap.Error(err))
	} else {
		s.log.Debug("read err", zap.Error(err))
	}
}
