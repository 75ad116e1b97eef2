package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/errs"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/telemetry"
)

// UserDirectory supplies the recipient profile for chat_joined.
type UserDirectory interface {
	GetUserInfo(ctx context.Context, userID int) (models.UserInfo, error)
}

// PartnerLister lists a user's active matches.
type PartnerLister interface {
	ListPartnerIDs(ctx context.Context, userID int) ([]int, error)
}

// GroupLister lists group members.
type GroupLister interface {
	ListMemberIDs(ctx context.Context, groupID int) ([]int, error)
	ListCoMemberIDs(ctx context.Context, userID int) ([]int, error)
}

type Options struct {
	AllowAnonymous bool
	PresenceScope  string
	HistoryLimit   int
	OpTimeout      time.Duration
	SendBuffer     int
}

type Deps struct {
	Hub      *Hub
	Presence *Presence
	Pipeline *chat.Pipeline
	Resolver auth.Resolver
	Users    UserDirectory
	Matches  PartnerLister
	Groups   GroupLister
	Events   *observability.Events
	Audit    *telemetry.AuditEmitter
	Logger   *zap.Logger
}

type handlerFunc func(ctx context.Context, c *Client, data []byte) error

// Gateway owns the lifecycle of every connection: handshake, presence,
// per-connection event dispatch and cleanup.
type Gateway struct {
	hub      *Hub
	presence *Presence
	pipeline *chat.Pipeline
	resolver auth.Resolver
	users    UserDirectory
	matches  PartnerLister
	groups   GroupLister
	events   *observability.Events
	audit    *telemetry.AuditEmitter
	logger   *zap.Logger

	opts     Options
	codec    *codec
	handlers map[string]handlerFunc
	upgrader websocket.Upgrader
}

func NewGateway(deps Deps, opts Options) *Gateway {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	if opts.PresenceScope == "" {
		opts.PresenceScope = config.PresenceScopePartners
	}
	g := &Gateway{
		hub:      deps.Hub,
		presence: deps.Presence,
		pipeline: deps.Pipeline,
		resolver: deps.Resolver,
		users:    deps.Users,
		matches:  deps.Matches,
		groups:   deps.Groups,
		events:   deps.Events,
		audit:    deps.Audit,
		logger:   deps.Logger.With(zap.String("component", "gateway")),
		opts:     opts,
		codec:    newCodec(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	g.handlers = map[string]handlerFunc{
		models.EventJoinChat:       g.handleJoinChat,
		models.EventLeaveChat:      g.handleLeaveChat,
		models.EventSendMessage:    g.handleSendMessage,
		models.EventMessageRead:    g.handleMessageRead,
		models.EventTyping:         g.handleTyping,
		models.EventJoinGroupChat:  g.handleJoinGroup,
		models.EventLeaveGroupChat: g.handleLeaveGroup,
		models.EventGroupMessage:   g.handleGroupMessage,
		models.EventGroupTyping:    g.handleGroupTyping,
	}
	deps.Hub.OnPrune(deps.Pipeline.Typing().DropRoom)
	return g
}

// Handle authenticates and upgrades GET /ws.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	userID, err := g.authenticate(ctx, credentialFromRequest(c.Request))
	// Only a bad credential may fall back to an anonymous socket.
	if err != nil && (!g.opts.AllowAnonymous || !errors.Is(err, errs.ErrUnauthenticated)) {
		g.logger.Info("handshake rejected", zap.String("ip", observability.IPFromRequest(c.Request)), zap.Error(err))
		c.JSON(errs.HTTPStatus(err), gin.H{"error": errs.Message(err), "code": errs.Code(err)})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info, g.opts.SendBuffer)
	go client.writePump()

	// The request context ends with the handler; the connection outlives it.
	connCtx := context.WithoutCancel(ctx)
	g.Connect(connCtx, client)
	go g.serve(connCtx, client)
}

func (g *Gateway) authenticate(ctx context.Context, credential string) (int, error) {
	if credential == "" {
		return 0, fmt.Errorf("missing token: %w", errs.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.OpTimeout)
	defer cancel()
	return g.resolver.Resolve(ctx, credential)
}

func (g *Gateway) serve(ctx context.Context, c *Client) {
	var reason string
	defer func() {
		g.Disconnect(ctx, c, reason)
	}()

	err := c.readPump(func(frame []byte) { g.Dispatch(ctx, c, frame) })
	reason = err.Error()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		if closed := c.CloseReason(); closed != "" {
			reason = closed
		}
		observability.IncWSEvent(c.info.kind(), "ws_error")
		g.publishLifecycle(ctx, c, "ws_error", "", reason)
	}
}

// Connect registers a freshly accepted connection. Anonymous connections are
// told so and never enter presence.
func (g *Gateway) Connect(ctx context.Context, c *Client) {
	observability.IncWSActive(c.info.kind())
	observability.IncWSEvent(c.info.kind(), "ws_connect")
	g.publishLifecycle(ctx, c, "ws_connect", "", "")

	if c.info.Anonymous() {
		g.send(c, models.EventConnectionStatus, models.ConnectionStatus{
			Status:  "unauthenticated",
			Message: "Connected without authentication",
		})
		return
	}

	userID := c.UserID()
	first := g.presence.Add(c)
	g.hub.Join(c, models.PersonalRoom(userID))
	g.send(c, models.EventConnectionStatus, models.ConnectionStatus{
		Status:  "connected",
		Message: "Successfully connected",
		UserID:  userID,
	})
	g.logger.Info("client connected",
		zap.String("conn_id", c.ID()), zap.Int("user_id", userID), zap.Bool("first", first))

	if first {
		g.broadcastPresence(ctx, userID, models.PresenceOnline)
	}
}

// Disconnect releases everything c holds. Rooms and presence are released
// before anything is broadcast, so a failing broadcast cannot leak them.
func (g *Gateway) Disconnect(ctx context.Context, c *Client, reason string) {
	c.Close(reason)
	rooms := g.hub.LeaveAll(c)
	last := g.presence.Remove(c)

	observability.DecWSActive(c.info.kind())
	observability.IncWSEvent(c.info.kind(), "ws_disconnect")

	if c.info.Anonymous() {
		g.publishLifecycle(ctx, c, "ws_disconnect", "", reason)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("disconnect broadcast panicked",
				zap.String("conn_id", c.ID()), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	userID := c.UserID()
	g.pipeline.ReleaseTyping(ctx, userID, func(room string) bool {
		return g.hub.UserInRoom(room, userID)
	})
	if last {
		g.broadcastPresence(ctx, userID, models.PresenceOffline)
	}
	g.logger.Info("client disconnected",
		zap.String("conn_id", c.ID()), zap.Int("user_id", userID),
		zap.Strings("rooms", rooms), zap.Bool("last", last), zap.String("reason", reason))
	g.publishLifecycle(ctx, c, "ws_disconnect", "", reason)
}

// Dispatch handles one inbound frame. Every failure becomes one error event
// for c; the connection stays open.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, frame []byte) {
	name, data, err := g.codec.peek(frame)
	if err != nil {
		g.emitError(ctx, c, name, err)
		return
	}
	handler, ok := g.handlers[name]
	if !ok {
		g.emitError(ctx, c, name, fmt.Errorf("unknown event %q: %w", name, errs.ErrValidation))
		return
	}
	observability.IncWSEvent(c.info.kind(), name)
	if c.info.Anonymous() {
		g.emitError(ctx, c, name, fmt.Errorf("%s needs an authenticated connection: %w", name, errs.ErrUnauthenticated))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opts.OpTimeout)
	defer cancel()
	if err := g.run(opCtx, handler, c, data); err != nil {
		g.emitError(ctx, c, name, err)
	}
}

func (g *Gateway) run(ctx context.Context, handler handlerFunc, c *Client, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("event handler panicked",
				zap.String("conn_id", c.ID()), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = errors.New("handler panic")
		}
	}()
	return handler(ctx, c, data)
}

func (g *Gateway) emitError(ctx context.Context, c *Client, event string, err error) {
	code := errs.Code(err)
	observability.IncError(code)

	fields := []zap.Field{zap.String("conn_id", c.ID()), zap.Int("user_id", c.UserID()), zap.String("event", event), zap.String("code", code), zap.Error(err)}
	switch code {
	case errs.CodePersistence, errs.CodeInternal:
		g.logger.Error("event failed", fields...)
	default:
		g.logger.Debug("event rejected", fields...)
	}
	if code == errs.CodeAuthorization {
		g.audit.Emit(ctx, "WARN", fmt.Sprintf("%s rejected: %v", event, err), c.info.RequestID, c.UserID())
	}

	g.send(c, models.EventError, models.ErrorPayload{Message: errs.Message(err), Code: code, Event: event})
}

// send writes one event to c only.
func (g *Gateway) send(c *Client, name string, data any) {
	frame, err := models.Event{Name: name, Data: data}.Encode()
	if err != nil {
		g.logger.Error("encode event", zap.String("event", name), zap.Error(err))
		return
	}
	c.Enqueue(frame)
}

// broadcastPresence announces status to the configured audience.
func (g *Gateway) broadcastPresence(ctx context.Context, userID int, status string) {
	event := models.Event{Name: models.EventUserStatus, Data: models.UserStatus{UserID: userID, Status: status}}

	if g.opts.PresenceScope == config.PresenceScopeAll {
		if err := g.hub.BroadcastAll(ctx, event); err != nil {
			g.logger.Warn("presence broadcast failed", zap.Int("user_id", userID), zap.Error(err))
		}
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.opts.OpTimeout)
	defer cancel()
	audience, err := g.presenceAudience(lookupCtx, userID)
	if err != nil {
		g.logger.Warn("presence audience lookup failed", zap.Int("user_id", userID), zap.Error(err))
	}
	for _, id := range audience {
		if err := g.hub.Broadcast(ctx, models.PersonalRoom(id), event, ""); err != nil {
			g.logger.Warn("presence broadcast failed", zap.Int("user_id", userID), zap.Int("to", id), zap.Error(err))
		}
	}
}

// presenceAudience is everyone matched with userID or sharing a group.
// Partial results are returned alongside the first error.
func (g *Gateway) presenceAudience(ctx context.Context, userID int) ([]int, error) {
	var firstErr error
	var partners, coMembers []int
	if g.matches != nil {
		ids, err := g.matches.ListPartnerIDs(ctx, userID)
		if err != nil {
			firstErr = err
		}
		partners = ids
	}
	if g.groups != nil {
		ids, err := g.groups.ListCoMemberIDs(ctx, userID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		coMembers = ids
	}
	audience := lo.Without(lo.Union(partners, coMembers), userID)
	return audience, firstErr
}

func (g *Gateway) publishLifecycle(ctx context.Context, c *Client, event, room, reason string) {
	info := c.Info()
	routingKey := observability.RoutingWSConnections
	if room != "" {
		routingKey = observability.RoutingWSRooms
	}
	g.events.Publish(ctx, routingKey,
		observability.WSEnvelope(event, room, info.ConnID, reason, info.ConnectedAt, info.identity()),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
