package chat

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"PPCollab/global"
	"PPCollab/logger"
	"PPCollab/middleware/security"
	"PPCollab/service/auth"
	"PPCollab/tools/errs"
	"PPCollab/tools/ids"
	"PPCollab/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	GatewayID    string
	ReadLimit    int64         // 单帧上限，默认 1MiB
	WriteTimeout time.Duration // 单次写超时，默认 5s
	CheckOrigin  func(r *http.Request) bool
	Presence     PresenceSink
	IDs          *ids.Generator
}

func (o *Options) norm() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if o.IDs == nil {
		o.IDs = ids.NewGenerator(1)
	}
}

// Server owns the registry, the room index and the broadcaster for the whole
// process. Build one at startup and hand it to the router.
type Server struct {
	opts     Options
	verifier auth.Verifier

	conns *ConnManager
	rooms *RoomIndex
	bc    *Broadcaster

	upgrader websocket.Upgrader
	sessions sync.WaitGroup
	closing  atomic.Bool
	log      *zap.Logger
}

func NewServer(verifier auth.Verifier, opts Options) *Server {
	safe.MustNotNil(verifier, "verifier")
	opts.norm()

	conns := NewConnManager(opts.Presence)
	rooms := NewRoomIndex()
	s := &Server{
		opts:     opts,
		verifier: verifier,
		conns:    conns,
		rooms:    rooms,
		bc:       NewBroadcaster(conns, rooms),
		log:      logger.Named("gateway"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     opts.CheckOrigin,
	}
	return s
}

func (s *Server) Conns() *ConnManager       { return s.conns }
func (s *Server) Rooms() *RoomIndex         { return s.rooms }
func (s *Server) Broadcaster() *Broadcaster { return s.bc }
func (s *Server) GatewayID() string         { return s.opts.GatewayID }
func (s *Server) Publisher() TaskPublisher  { return s.bc }

// HandleWS upgrades the request, authenticates the credential and runs the
// session until the socket goes away.
func (s *Server) HandleWS(c *gin.Context) {
	if s.closing.Load() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, global.Fail(errs.ErrServerInternal.WrapMsg("shutting down")))
		return
	}
	token := security.TokenFrom(c)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求 / Origin 不合法；Upgrade 已写回 HTTP 错误
		s.log.Info("upgrade failed", zap.Error(err))
		return
	}

	id, err := auth.Check(c.Request.Context(), s.verifier, token)
	if err != nil {
		s.reject(ws, err)
		return
	}

	ws.SetReadLimit(s.opts.ReadLimit)
	conn := NewConn(s.opts.IDs.NextString(), id.UserID, newWSWriter(ws, s.opts.WriteTimeout))
	conn.Remote = remoteOf(ws)

	s.sessions.Add(1)
	defer s.sessions.Done()
	newSession(s, conn, ws).run()
}

// reject closes an unauthenticated socket with 1008. Nothing has been
// registered yet.
func (s *Server) reject(ws *websocket.Conn, err error) {
	reason := "unauthorized"
	if ce, ok := errs.AsCode(err); ok {
		reason = ce.Msg
	}
	s.log.Info("handshake rejected", zap.String("remote", remoteOf(ws)), zap.Error(err))
	w := newWSWriter(ws, s.opts.WriteTimeout)
	_ = w.CloseWith(websocket.ClosePolicyViolation, reason)
}

// Shutdown refuses new sockets, drops every connection with 1001 and waits
// for the session goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	s.conns.Close()
	s.rooms.Reset()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("gateway drained")
		return nil
	case <-ctx.Done():
		return errs.WrapMsg(ctx.Err(), "gateway shutdown")
	}
}
