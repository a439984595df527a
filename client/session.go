// Package client ties the pieces together: one Session owns the request
// scheduler, the gateway connection, and the entity cache.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/victorivanov/retrograde/auth"
	"github.com/victorivanov/retrograde/config"
	"github.com/victorivanov/retrograde/event"
	"github.com/victorivanov/retrograde/gateway"
	"github.com/victorivanov/retrograde/model"
	"github.com/victorivanov/retrograde/permission"
	"github.com/victorivanov/retrograde/ratelimit"
	"github.com/victorivanov/retrograde/rest"
	"github.com/victorivanov/retrograde/snowflake"
	"github.com/victorivanov/retrograde/state"
)

// Session is the top-level client handle. Build one with New, call Open to
// connect the gateway, and Close when done.
type Session struct {
	Token auth.Token

	requester *rest.Requester
	gw        *gateway.Client
	bus       *event.Bus
	state     *state.State
	callbacks *rest.CallbackPool
}

// New builds a session from configuration. The gateway stays disconnected
// until Open.
func New(cfg *config.Config) (*Session, error) {
	token, err := auth.Parse(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("client: bad token: %w", err)
	}

	var store ratelimit.Store
	if cfg.RedisURL != "" {
		rs, err := ratelimit.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("client: rate limit store: %w", err)
		}
		store = rs
	} else {
		store = ratelimit.NewMemoryStore()
	}

	s := &Session{
		Token:     token,
		bus:       event.NewBus(),
		state:     state.New(),
		callbacks: rest.NewCallbackPool(4, 256),
	}
	s.bus.Subscribe(s.state.Apply)

	s.requester = rest.NewRequester(rest.Options{
		BaseURL:    cfg.APIURL,
		Token:      cfg.Token,
		Limiter:    ratelimit.NewLimiter(store),
		GlobalRate: rate.Limit(50),
	})
	s.gw = gateway.NewClient(cfg.GatewayURL, cfg.Token, s.bus.Dispatch)
	return s, nil
}

// Open connects the gateway and blocks until READY.
func (s *Session) Open(ctx context.Context) (gateway.ReadyData, error) {
	return s.gw.Connect(ctx)
}

// Close disconnects the gateway and stops the schedulers. Pending callbacks
// are drained.
func (s *Session) Close() {
	s.gw.Close()
	s.requester.Close()
	s.callbacks.Close()
}

// State exposes the entity cache.
func (s *Session) State() *state.State { return s.state }

// Subscribe registers an event handler; the returned ID feeds Unsubscribe.
func (s *Session) Subscribe(h event.Handler) string { return s.bus.Subscribe(h) }

// Unsubscribe removes an event handler.
func (s *Session) Unsubscribe(id string) { s.bus.Unsubscribe(id) }

// UpdatePresence pushes a presence change over the gateway.
func (s *Session) UpdatePresence(status string) error {
	return s.gw.UpdatePresence(status)
}

// execute queues a request whose 2xx body decodes into T and returns the
// awaitable result. The audit reason travels from ctx into the request
// headers and back into the continuation context.
func execute[T any](ctx context.Context, s *Session, route rest.Route, body any) *rest.Future[T] {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return rest.FailedFuture[T](rest.Validationf("encoding body: %v", err))
		}
	}

	f := rest.NewFuture[T]()
	req := rest.NewRequest(ctx, s.callbacks, route, payload,
		func(resp *rest.Response) (T, error) {
			var v T
			if len(resp.Body()) == 0 {
				return v, nil
			}
			if err := json.Unmarshal(resp.Body(), &v); err != nil {
				return v, fmt.Errorf("decoding %s %s: %w", route.Method, route.Path, err)
			}
			return v, nil
		},
		func(_ context.Context, v T) { f.Complete(v) },
		func(_ context.Context, err error) { f.CompleteError(err) },
	)
	// Cancellation fires no continuation, only the terminal hook. Resolve
	// the future from there so a request the scheduler cancels (failed
	// pre-flight check, aborted limiter wait, queue drained at Close) never
	// strands a caller blocked in Get.
	req.WithHook(func(_ rest.Route, st rest.State, _ *rest.Response) {
		if st == rest.StateCanceled {
			f.CompleteError(rest.ErrCanceled)
		}
	})
	f.BindCancel(req.Cancel)

	if !s.requester.Queue(req) {
		req.Cancel()
		return rest.FailedFuture[T](rest.Validationf("request queue full"))
	}
	return f
}

// TokenPair is the result of a refresh exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges a refresh token for a fresh token pair. The caller
// is responsible for building a new Session with the returned access token.
func (s *Session) RefreshToken(ctx context.Context, refreshToken string) *rest.Future[TokenPair] {
	if refreshToken == "" {
		return rest.FailedFuture[TokenPair](rest.Validationf("empty refresh token"))
	}
	return execute[TokenPair](ctx, s,
		rest.Compile(http.MethodPost, "/auth/refresh"),
		refreshPayload{RefreshToken: refreshToken})
}

// Guild fetches a guild, roles included.
func (s *Session) Guild(ctx context.Context, id snowflake.ID) *rest.Future[model.Guild] {
	return execute[model.Guild](ctx, s, rest.Compile(http.MethodGet, "/guilds/{}", id), nil)
}

// Channel fetches a channel with its overwrites.
func (s *Session) Channel(ctx context.Context, id snowflake.ID) *rest.Future[model.Channel] {
	return execute[model.Channel](ctx, s, rest.Compile(http.MethodGet, "/channels/{}", id), nil)
}

// Member fetches a guild member with role snapshots.
func (s *Session) Member(ctx context.Context, guildID, userID snowflake.ID) *rest.Future[model.Member] {
	return execute[model.Member](ctx, s, rest.Compile(http.MethodGet, "/guilds/{}/members/{}", guildID, userID), nil)
}

type sendMessagePayload struct {
	Content string       `json:"content"`
	Nonce   snowflake.ID `json:"nonce"`
}

// SendMessage posts a message. A locally generated nonce lets the caller
// match the MESSAGE_CREATE dispatch to this call.
func (s *Session) SendMessage(ctx context.Context, channelID snowflake.ID, content string) *rest.Future[model.Message] {
	if content == "" {
		return rest.FailedFuture[model.Message](rest.Validationf("empty message content"))
	}
	if err := s.requirePermission(channelID, permission.SendMessages); err != nil {
		return rest.FailedFuture[model.Message](err)
	}
	return execute[model.Message](ctx, s,
		rest.Compile(http.MethodPost, "/channels/{}/messages", channelID),
		sendMessagePayload{Content: content, Nonce: snowflake.Nonce()})
}

// EditMessage updates a message's content.
func (s *Session) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, content string) *rest.Future[model.Message] {
	if content == "" {
		return rest.FailedFuture[model.Message](rest.Validationf("empty message content"))
	}
	return execute[model.Message](ctx, s,
		rest.Compile(http.MethodPatch, "/channels/{}/messages/{}", channelID, messageID),
		sendMessagePayload{Content: content})
}

// DeleteMessage removes a message. An audit reason on ctx is forwarded.
func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) *rest.Future[struct{}] {
	return executeNone(ctx, s, rest.Compile(http.MethodDelete, "/channels/{}/messages/{}", channelID, messageID), nil)
}

type rolePayload struct {
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Permissions int64  `json:"permissions,string"`
	Position    int    `json:"position"`
}

// CreateRole creates a guild role. The caller needs ManageRoles.
func (s *Session) CreateRole(ctx context.Context, guildID snowflake.ID, name string, perms int64) *rest.Future[model.Role] {
	if name == "" {
		return rest.FailedFuture[model.Role](rest.Validationf("empty role name"))
	}
	if err := s.requireGuildPermission(guildID, permission.ManageRoles); err != nil {
		return rest.FailedFuture[model.Role](err)
	}
	return execute[model.Role](ctx, s,
		rest.Compile(http.MethodPost, "/guilds/{}/roles", guildID),
		rolePayload{Name: name, Permissions: perms})
}

// UpdateRole replaces a role's settings.
func (s *Session) UpdateRole(ctx context.Context, guildID, roleID snowflake.ID, name string, perms int64, position int) *rest.Future[model.Role] {
	if err := s.requireGuildPermission(guildID, permission.ManageRoles); err != nil {
		return rest.FailedFuture[model.Role](err)
	}
	return execute[model.Role](ctx, s,
		rest.Compile(http.MethodPatch, "/guilds/{}/roles/{}", guildID, roleID),
		rolePayload{Name: name, Permissions: perms, Position: position})
}

// DeleteRole removes a role. An audit reason on ctx is forwarded.
func (s *Session) DeleteRole(ctx context.Context, guildID, roleID snowflake.ID) *rest.Future[struct{}] {
	if err := s.requireGuildPermission(guildID, permission.ManageRoles); err != nil {
		return rest.FailedFuture[struct{}](err)
	}
	return executeNone(ctx, s, rest.Compile(http.MethodDelete, "/guilds/{}/roles/{}", guildID, roleID), nil)
}

type overwritePayload struct {
	Type  model.OverwriteType `json:"type"`
	Allow int64               `json:"allow,string"`
	Deny  int64               `json:"deny,string"`
}

// SetChannelOverwrite creates or replaces a permission overwrite on a
// channel. The caller needs ManagePermissions in that channel.
func (s *Session) SetChannelOverwrite(ctx context.Context, channelID snowflake.ID, kind model.OverwriteType, targetID snowflake.ID, allow, deny int64) *rest.Future[struct{}] {
	if allow&deny != 0 {
		return rest.FailedFuture[struct{}](rest.Validationf("overlapping allow and deny masks"))
	}
	if err := s.requirePermission(channelID, permission.ManagePermissions); err != nil {
		return rest.FailedFuture[struct{}](err)
	}
	return executeNone(ctx, s,
		rest.Compile(http.MethodPut, "/channels/{}/permissions/{}", channelID, targetID),
		overwritePayload{Type: kind, Allow: allow, Deny: deny})
}

// DeleteChannelOverwrite removes a permission overwrite.
func (s *Session) DeleteChannelOverwrite(ctx context.Context, channelID, targetID snowflake.ID) *rest.Future[struct{}] {
	if err := s.requirePermission(channelID, permission.ManagePermissions); err != nil {
		return rest.FailedFuture[struct{}](err)
	}
	return executeNone(ctx, s, rest.Compile(http.MethodDelete, "/channels/{}/permissions/{}", channelID, targetID), nil)
}

func executeNone(ctx context.Context, s *Session, route rest.Route, body any) *rest.Future[struct{}] {
	return execute[struct{}](ctx, s, route, body)
}

// Permissions resolves the session user's effective permissions in a
// channel from cached state.
func (s *Session) Permissions(channelID snowflake.ID) (int64, error) {
	ch, ok := s.state.Channel(channelID)
	if !ok {
		return 0, fmt.Errorf("client: channel %s not cached", channelID)
	}
	guild, ok := s.state.Guild(ch.GuildID)
	if !ok {
		return 0, fmt.Errorf("client: guild %s not cached", ch.GuildID)
	}
	member, ok := s.state.Member(ch.GuildID, snowflake.ID(s.Token.UserID))
	if !ok {
		return 0, fmt.Errorf("client: own membership in guild %s not cached", ch.GuildID)
	}
	return permission.EffectiveInChannel(guild, ch, member)
}

// requirePermission rejects a call locally when cached state proves the
// session user lacks perm in the channel. Missing cache entries let the
// call through; the server is the authority.
func (s *Session) requirePermission(channelID snowflake.ID, perm permission.Permission) error {
	effective, err := s.Permissions(channelID)
	if err != nil {
		return nil
	}
	if effective&perm.Raw() == 0 {
		return rest.Validationf("missing %s in channel %s", perm, channelID)
	}
	return nil
}

func (s *Session) requireGuildPermission(guildID snowflake.ID, perm permission.Permission) error {
	guild, ok := s.state.Guild(guildID)
	if !ok {
		return nil
	}
	member, ok := s.state.Member(guildID, snowflake.ID(s.Token.UserID))
	if !ok {
		return nil
	}
	effective, err := permission.Effective(guild, member)
	if err != nil {
		return nil
	}
	if effective&perm.Raw() == 0 {
		return rest.Validationf("missing %s in guild %s", perm, guildID)
	}
	return nil
}
