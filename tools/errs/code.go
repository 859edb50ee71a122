package errs

// 错误码分段
//   401xx 握手鉴权
//   400xx 协议帧
//   500xx 传输 / 服务内部
const (
	TokenMissingError   = 40101
	TokenInvalidError   = 40102
	UserInactiveError   = 40103
	MalformedFrameErr   = 40001
	UnknownFrameErr     = 40002
	MissingFieldErr     = 40003
	DeadConnectionErr   = 50001
	ServerInternalError = 50000
)

var (
	ErrTokenMissing   = NewCodeError(TokenMissingError, "token missing")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "token invalid")
	ErrUserInactive   = NewCodeError(UserInactiveError, "user inactive")
	ErrMalformedFrame = NewCodeError(MalformedFrameErr, "malformed frame")
	ErrUnknownFrame   = NewCodeError(UnknownFrameErr, "unknown frame type")
	ErrMissingField   = NewCodeError(MissingFieldErr, "missing required field")
	ErrDeadConnection = NewCodeError(DeadConnectionErr, "dead connection")
	ErrServerInternal = NewCodeError(ServerInternalError, "server internal error")
)

// IsAuthFailure reports whether err belongs to the handshake range.
func IsAuthFailure(err error) bool {
	c, ok := AsCode(err)
	return ok && c.Code/100 == 401
}

// IsProtocol reports whether err belongs to the frame-level range.
func IsProtocol(err error) bool {
	c, ok := AsCode(err)
	return ok && c.Code/100 == 400
}
