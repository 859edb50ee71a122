package chat

import (
	"encoding/json"
	"time"

	"PPCollab/tools/errs"
)

// 帧类型（JSON 文本帧，字段扁平）
const (
	TypeJoinTeam       = "join_team"
	TypeLeaveTeam      = "leave_team"
	TypeTaskUpdate     = "task_update"
	TypeTyping         = "typing"
	TypeCursorPosition = "cursor_position"
	TypePing           = "ping"

	TypeConnection   = "connection"
	TypeRoomJoined   = "room_joined"
	TypePresence     = "presence"
	TypeCursorUpdate = "cursor_update"
	TypePong         = "pong"
	TypeError        = "error"
)

const (
	StatusOnline    = "online"
	StatusOffline   = "offline"
	StatusConnected = "connected"
)

// RFC 3339, UTC, millisecond precision
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

var nowFunc = time.Now

func timestamp() string { return nowFunc().UTC().Format(tsLayout) }

// ===== 下行 =====

// Envelope is one outbound frame. The set of implementations is closed; values
// are built only by the constructors below.
type Envelope interface {
	Kind() string
	envelope()
}

type ConnectionMsg struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

type RoomJoinedMsg struct {
	Type        string   `json:"type"`
	RoomID      string   `json:"room_id"`
	OnlineUsers []string `json:"online_users"`
}

type TaskUpdateMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	TaskID    string `json:"task_id"`
	Action    string `json:"action"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type PresenceMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type TypingMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	TaskID    string `json:"task_id"`
	IsTyping  bool   `json:"is_typing"`
	Timestamp string `json:"timestamp"`
}

type CursorUpdateMsg struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id"`
	UserID   string          `json:"user_id"`
	Position json.RawMessage `json:"position"`
}

type PongMsg struct {
	Type string `json:"type"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (m *ConnectionMsg) Kind() string   { return m.Type }
func (m *RoomJoinedMsg) Kind() string   { return m.Type }
func (m *TaskUpdateMsg) Kind() string   { return m.Type }
func (m *PresenceMsg) Kind() string     { return m.Type }
func (m *TypingMsg) Kind() string       { return m.Type }
func (m *CursorUpdateMsg) Kind() string { return m.Type }
func (m *PongMsg) Kind() string         { return m.Type }
func (m *ErrorMsg) Kind() string        { return m.Type }

func (*ConnectionMsg) envelope()   {}
func (*RoomJoinedMsg) envelope()   {}
func (*TaskUpdateMsg) envelope()   {}
func (*PresenceMsg) envelope()     {}
func (*TypingMsg) envelope()       {}
func (*CursorUpdateMsg) envelope() {}
func (*PongMsg) envelope()         {}
func (*ErrorMsg) envelope()        {}

func Connection(userID string) Envelope {
	return &ConnectionMsg{Type: TypeConnection, Status: StatusConnected, UserID: userID}
}

func RoomJoined(roomID string, online []string) Envelope {
	if online == nil {
		online = []string{}
	}
	return &RoomJoinedMsg{Type: TypeRoomJoined, RoomID: roomID, OnlineUsers: online}
}

func TaskUpdate(taskID, roomID, action, actorID string, data any) Envelope {
	return &TaskUpdateMsg{
		Type:      TypeTaskUpdate,
		RoomID:    roomID,
		TaskID:    taskID,
		Action:    action,
		UserID:    actorID,
		Timestamp: timestamp(),
		Data:      data,
	}
}

func Presence(actorID, roomID, status string) Envelope {
	return &PresenceMsg{
		Type:      TypePresence,
		RoomID:    roomID,
		UserID:    actorID,
		Status:    status,
		Timestamp: timestamp(),
	}
}

func Typing(actorID, roomID, taskID string, isTyping bool) Envelope {
	return &TypingMsg{
		Type:      TypeTyping,
		RoomID:    roomID,
		UserID:    actorID,
		TaskID:    taskID,
		IsTyping:  isTyping,
		Timestamp: timestamp(),
	}
}

func CursorUpdate(actorID, roomID string, position json.RawMessage) Envelope {
	return &CursorUpdateMsg{Type: TypeCursorUpdate, RoomID: roomID, UserID: actorID, Position: position}
}

func Pong() Envelope { return &PongMsg{Type: TypePong} }

// Error turns err into an error frame; errors without a code are reported as
// internal so no detail leaks to the peer.
func Error(err error) Envelope {
	ce, ok := errs.AsCode(err)
	if !ok {
		return &ErrorMsg{Type: TypeError, Code: errs.ServerInternalError, Message: errs.ErrServerInternal.Msg}
	}
	msg := ce.Msg
	if ce.Detail != "" {
		msg += ": " + ce.Detail
	}
	return &ErrorMsg{Type: TypeError, Code: ce.Code, Message: msg}
}

func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode envelope", "type", env.Kind())
	}
	return b, nil
}

// ===== 上行 =====

// Inbound is one parsed client frame. ParseInbound returns exactly one of the
// types below.
type Inbound interface {
	inbound()
}

type JoinTeam struct{ RoomID string }

type LeaveTeam struct{ RoomID string }

type TaskUpdateRequest struct {
	RoomID string
	TaskID string
	Action string
	Data   json.RawMessage
}

type TypingRequest struct {
	RoomID   string
	TaskID   string
	IsTyping bool
}

type CursorPosition struct {
	RoomID   string
	Position json.RawMessage
}

type Ping struct{}

func (JoinTeam) inbound()          {}
func (LeaveTeam) inbound()         {}
func (TaskUpdateRequest) inbound() {}
func (TypingRequest) inbound()     {}
func (CursorPosition) inbound()    {}
func (Ping) inbound()              {}

type rawFrame struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id"`
	TaskID   string          `json:"task_id"`
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
	IsTyping *bool           `json:"is_typing"`
	Position json.RawMessage `json:"position"`
}

// ParseInbound decodes one text frame. Errors carry ErrMalformedFrame,
// ErrMissingField or ErrUnknownFrame.
func ParseInbound(raw []byte) (Inbound, error) {
	var f rawFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrMalformedFrame.WrapMsg(err.Error())
	}

	switch f.Type {
	case "":
		return nil, errs.ErrMissingField.WrapMsg("", "field", "type")
	case TypeJoinTeam:
		if err := require("room_id", f.RoomID); err != nil {
			return nil, err
		}
		return JoinTeam{RoomID: f.RoomID}, nil
	case TypeLeaveTeam:
		if err := require("room_id", f.RoomID); err != nil {
			return nil, err
		}
		return LeaveTeam{RoomID: f.RoomID}, nil
	case TypeTaskUpdate:
		if err := require("room_id", f.RoomID, "task_id", f.TaskID, "action", f.Action); err != nil {
			return nil, err
		}
		return TaskUpdateRequest{RoomID: f.RoomID, TaskID: f.TaskID, Action: f.Action, Data: f.Data}, nil
	case TypeTyping:
		if err := require("room_id", f.RoomID, "task_id", f.TaskID); err != nil {
			return nil, err
		}
		if f.IsTyping == nil {
			return nil, errs.ErrMissingField.WrapMsg("", "field", "is_typing")
		}
		return TypingRequest{RoomID: f.RoomID, TaskID: f.TaskID, IsTyping: *f.IsTyping}, nil
	case TypeCursorPosition:
		if err := require("room_id", f.RoomID); err != nil {
			return nil, err
		}
		if len(f.Position) == 0 {
			return nil, errs.ErrMissingField.WrapMsg("", "field", "position")
		}
		return CursorPosition{RoomID: f.RoomID, Position: f.Position}, nil
	case TypePing:
		return Ping{}, nil
	default:
		return nil, errs.ErrUnknownFrame.WrapMsg("", "type", f.Type)
	}
}

// require takes name/value pairs and fails on the first empty value.
func require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return errs.ErrMissingField.WrapMsg("", "field", pairs[i])
		}
	}
	return nil
}
