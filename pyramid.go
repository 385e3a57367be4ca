// Pyramid game server
//
// Each room is owned by one Hub goroutine, which is the only place its
// pyramid.Session is mutated. Clients talk to the hub over a websocket and
// receive the full game state after every change.
//
// Features:
// - Rooms at /path/:room with a 4-digit numeric code, created by POST /path/rooms
// - WebSocket per room: /path/:room/ws
// - Roles per cookie: host, player or display; the first "host" message opens the room
// - Leave hooks registered when a role is taken: host leaving closes the room,
//   a player leaving is removed, a display leaving clears the display flag
// - Hooks wait for --player-timeout so a page reload does not count as leaving
// - Cells nobody can answer are skipped after --auto-advance; the pending
//   timer is tied to the session version, so any other move makes it a no-op
// - Idle rooms reaped after --session-timeout
// - QR code of the room URL for the shared display, backed by go-qrcode
// - Read-only JSON snapshot at /path/:room/state

package main

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/pyramid/games/pyramid"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 45 * time.Second
	writeWait         = 10 * time.Second
	maxMessageSize    = 4096
	sendBuffer        = 16
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	clientID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

type eventKind int

const (
	eventAdvance eventKind = iota
	eventLeave
)

// event is raised by the hub's own timers.
type event struct {
	kind     eventKind
	clientID string
	version  uint64
}

type member struct {
	role     role
	nickname string
}

type Hub struct {
	code    string
	cfg     *Config
	shuffle pyramid.Shuffler
	onEnd   func(h *Hub)

	clients map[*Client]bool
	members map[string]member      // clientID -> role in this room
	hooks   map[string]func()      // clientID -> leave compensation
	leaving map[string]*time.Timer // clientID -> pending leave
	advance *time.Timer

	register chan *Client
	unreg    chan *Client
	cmds     chan command
	events   chan event
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	session    *pyramid.Session
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, code string, shuffle pyramid.Shuffler) *Hub {
	now := time.Now()
	return &Hub{
		code:       code,
		cfg:        cfg,
		shuffle:    shuffle,
		clients:    make(map[*Client]bool),
		members:    make(map[string]member),
		hooks:      make(map[string]func()),
		leaving:    make(map[string]*time.Timer),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		cmds:       make(chan command),
		events:     make(chan event),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unreg:
			h.handleUnregister(c)
		case cmd := <-h.cmds:
			h.handleCommand(cmd)
		case ev := <-h.events:
			h.handleEvent(ev)
		case <-h.done:
		}

		if h.stopped() {
			h.shutdown()
			return
		}
	}
}

// stop ends the hub goroutine. Safe to call more than once.
func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(cmd command) bool {
	select {
	case h.cmds <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) notify(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
	for id, t := range h.leaving {
		t.Stop()
		delete(h.leaving, id)
	}
	h.stopAdvanceLocked()
	h.session = nil
}

func (h *Hub) lastActivity() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActive
}

// snapshot returns the public view, for readers outside the hub goroutine.
func (h *Hub) snapshot() (pyramid.View, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.session == nil {
		return pyramid.View{}, pyramid.ErrRoomNotFound
	}
	return h.session.PublicView(), nil
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()
	h.clients[c] = true

	// Back within the grace period: the pending leave is cancelled.
	if t, ok := h.leaving[c.clientID]; ok {
		t.Stop()
		delete(h.leaving, c.clientID)
	}

	h.sendLocked(c, h.sessionInfoLocked(c.clientID))
	if h.session != nil {
		h.sendLocked(c, h.stateMessageLocked())
	}
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()
	h.dropLocked(c)

	id := c.clientID
	if _, ok := h.hooks[id]; !ok || h.connectedLocked(id) {
		return
	}

	if h.cfg.playerTimeout <= 0 {
		h.leaveLocked(id)
		return
	}

	if _, pending := h.leaving[id]; pending {
		return
	}
	h.leaving[id] = time.AfterFunc(h.cfg.playerTimeout, func() {
		h.notify(event{kind: eventLeave, clientID: id})
	})
}

func (h *Hub) handleEvent(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch ev.kind {
	case eventLeave:
		delete(h.leaving, ev.clientID)
		if h.connectedLocked(ev.clientID) {
			return
		}
		h.leaveLocked(ev.clientID)

	case eventAdvance:
		if h.session == nil || !h.session.AdvanceIfCurrent(ev.version) {
			return
		}
		h.advance = nil
		zap.L().Debug("skipped unanswerable card", zap.String("room", h.code))
		h.broadcastStateLocked()
	}
}

func (h *Hub) handleCommand(cmd command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	var err error
	switch cmd.msg.Type {
	case "host":
		err = h.hostGameLocked(cmd)
	case "join":
		err = h.joinGameLocked(cmd)
	case "display":
		err = h.joinDisplayLocked(cmd)
	case "setting":
		err = h.updateSettingLocked(cmd)
	case "start":
		err = h.startGameLocked(cmd)
	case "reveal":
		err = h.revealNextCardLocked(cmd)
	case "assign":
		err = h.assignSipLocked(cmd)
	}

	if err != nil {
		zap.L().Debug("command rejected",
			zap.String("room", h.code),
			zap.String("type", cmd.msg.Type),
			zap.String("actor", h.members[cmd.client.clientID].nickname),
			zap.Error(err),
		)
		h.sendLocked(cmd.client, errorMessage(err))
	}
}

// attachLocked gives clientID a role and registers what to undo when it
// leaves.
func (h *Hub) attachLocked(c *Client, m member, onLeave func()) {
	h.members[c.clientID] = m
	h.hooks[c.clientID] = onLeave
	h.sendLocked(c, h.sessionInfoLocked(c.clientID))
}

func (h *Hub) leaveLocked(clientID string) {
	hook, ok := h.hooks[clientID]
	if !ok {
		return
	}
	m := h.members[clientID]
	delete(h.hooks, clientID)
	delete(h.members, clientID)

	zap.L().Info("left room",
		zap.String("room", h.code),
		zap.String("role", string(m.role)),
		zap.String("nickname", m.nickname),
	)

	hook()
}

// actorLocked is the nickname commands from clientID act as.
func (h *Hub) actorLocked(clientID string) string {
	m := h.members[clientID]
	if m.role == roleHost || m.role == rolePlayer {
		return m.nickname
	}
	return ""
}

func (h *Hub) hostGameLocked(cmd command) error {
	c := cmd.client

	if h.session != nil {
		if h.members[c.clientID].role == roleHost {
			h.sendLocked(c, h.sessionInfoLocked(c.clientID))
			return nil
		}
		return pyramid.ErrNotHost
	}

	s, err := pyramid.NewSession(h.code, cmd.msg.Nickname)
	if err != nil {
		return err
	}
	h.session = s

	h.attachLocked(c, member{role: roleHost, nickname: s.Host()}, func() {
		h.endLocked("The host left. The game is over.")
	})

	zap.L().Info("room opened", zap.String("room", h.code), zap.String("host", s.Host()))

	h.broadcastStateLocked()
	return nil
}

func (h *Hub) joinGameLocked(cmd command) error {
	c := cmd.client

	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}

	nickname := strings.TrimSpace(cmd.msg.Nickname)
	if m, ok := h.members[c.clientID]; ok {
		if m.role == rolePlayer && m.nickname == nickname {
			h.sendLocked(c, h.sessionInfoLocked(c.clientID))
			return nil
		}
		if m.role != roleDisplay {
			return pyramid.ErrNicknameTaken
		}
	}

	if err := h.session.AddPlayer(nickname); err != nil {
		return err
	}

	// A display taking a seat gives up its display role first.
	if h.members[c.clientID].role == roleDisplay {
		delete(h.hooks, c.clientID)
		delete(h.members, c.clientID)
		if !h.hasRoleLocked(roleDisplay) {
			h.session.LeaveDisplay()
		}
	}

	h.attachLocked(c, member{role: rolePlayer, nickname: nickname}, func() {
		if h.session == nil || !h.session.RemovePlayer(nickname) {
			return
		}
		h.broadcastStateLocked()
		h.checkAutoAdvanceLocked()
	})

	zap.L().Info("player joined", zap.String("room", h.code), zap.String("nickname", nickname))

	h.broadcastStateLocked()
	return nil
}

func (h *Hub) joinDisplayLocked(cmd command) error {
	c := cmd.client

	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}
	if _, ok := h.members[c.clientID]; ok {
		h.sendLocked(c, h.sessionInfoLocked(c.clientID))
		return nil
	}

	h.session.JoinDisplay()

	h.attachLocked(c, member{role: roleDisplay}, func() {
		if h.session == nil || h.hasRoleLocked(roleDisplay) {
			return
		}
		h.session.LeaveDisplay()
		h.broadcastStateLocked()
		h.checkAutoAdvanceLocked()
	})

	zap.L().Info("display joined", zap.String("room", h.code))

	h.broadcastStateLocked()
	h.checkAutoAdvanceLocked()
	return nil
}

func (h *Hub) updateSettingLocked(cmd command) error {
	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}

	err := h.session.UpdateSetting(h.actorLocked(cmd.client.clientID), cmd.msg.Key, cmd.msg.Value)
	switch {
	case errors.Is(err, pyramid.ErrNotHost), errors.Is(err, pyramid.ErrGameAlreadyStarted):
		// Only the host's lobby exposes settings; anything else is ignored.
		return nil
	case err != nil:
		return err
	}

	h.broadcastStateLocked()
	return nil
}

func (h *Hub) startGameLocked(cmd command) error {
	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}

	if err := h.session.Start(h.actorLocked(cmd.client.clientID), h.shuffle); err != nil {
		return err
	}

	settings := h.session.Settings()
	zap.L().Info("game started",
		zap.String("room", h.code),
		zap.Int("players", h.session.PlayerCount()),
		zap.String("deck", string(settings.Deck)),
		zap.Int("rows", settings.Rows),
	)

	h.broadcastStateLocked()
	return nil
}

func (h *Hub) revealNextCardLocked(cmd command) error {
	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}

	res, err := h.session.Reveal(h.actorLocked(cmd.client.clientID))
	if err != nil {
		return err
	}

	h.stopAdvanceLocked()
	h.broadcastStateLocked()

	if res.AutoAdvance {
		h.armAdvanceLocked()
	}
	return nil
}

func (h *Hub) assignSipLocked(cmd command) error {
	if h.session == nil {
		return pyramid.ErrRoomNotFound
	}

	actor := h.actorLocked(cmd.client.clientID)
	if err := h.session.AssignSip(actor, cmd.msg.Card, strings.TrimSpace(cmd.msg.Target)); err != nil {
		return err
	}

	h.stopAdvanceLocked()

	zap.L().Debug("sip assigned",
		zap.String("room", h.code),
		zap.String("from", actor),
		zap.String("to", cmd.msg.Target),
		zap.String("card", cmd.msg.Card),
	)

	h.broadcastStateLocked()
	if h.session.State() == pyramid.StateFinished {
		zap.L().Info("game finished", zap.String("room", h.code))
	}
	return nil
}

// armAdvanceLocked schedules a skip of the current cell, valid only while the
// session version stays the same.
func (h *Hub) armAdvanceLocked() {
	h.stopAdvanceLocked()

	version := h.session.Version()
	h.advance = time.AfterFunc(h.cfg.autoAdvance, func() {
		h.notify(event{kind: eventAdvance, version: version})
	})
}

func (h *Hub) stopAdvanceLocked() {
	if h.advance != nil {
		h.advance.Stop()
		h.advance = nil
	}
}

func (h *Hub) checkAutoAdvanceLocked() {
	if h.session != nil && h.session.NeedsAutoAdvance() {
		h.armAdvanceLocked()
	}
}

// endLocked closes the room for everybody.
func (h *Hub) endLocked(reason string) {
	for c := range h.clients {
		h.sendLocked(c, SimpleMessage{Type: "ended", Message: reason})
		h.dropLocked(c)
	}

	zap.L().Info("room closed", zap.String("room", h.code), zap.String("reason", reason))

	h.stopAdvanceLocked()
	h.session = nil
	h.stop()

	if h.onEnd != nil {
		h.onEnd(h)
	}
}

func (h *Hub) connectedLocked(clientID string) bool {
	for c := range h.clients {
		if c.clientID == clientID {
			return true
		}
	}
	return false
}

func (h *Hub) hasRoleLocked(r role) bool {
	for _, m := range h.members {
		if m.role == r {
			return true
		}
	}
	return false
}

func (h *Hub) sessionInfoLocked(clientID string) SessionInfoMessage {
	m := h.members[clientID]
	return SessionInfoMessage{
		Type:     "session_info",
		Room:     h.code,
		Role:     m.role,
		Nickname: m.nickname,
		Hosted:   h.session != nil,
	}
}

func (h *Hub) stateMessageLocked() StateMessage {
	return StateMessage{
		Type: "state",
		Game: h.session.PublicView(),
	}
}

func (h *Hub) broadcastStateLocked() {
	if h.session == nil {
		return
	}

	msg := h.stateMessageLocked()
	for c := range h.clients {
		h.sendLocked(c, msg)
	}
}

// sendLocked queues msg for c, dropping clients that cannot keep up.
func (h *Hub) sendLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientCookieName = "pyramid_id"

func clientCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func getOrSetClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, clientCookie(id))

	return id
}

// clientIDForUpgrade reads the cookie, or returns a new id together with the
// header that sets it on the websocket handshake response.
func clientIDForUpgrade(r *http.Request) (string, http.Header) {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	id := uuid.NewString()
	return id, http.Header{"Set-Cookie": {clientCookie(id).String()}}
}

// GameManager holds a set of hubs keyed by room code.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	cfg         *Config
	shuffle     pyramid.Shuffler
	idleTimeout time.Duration
	quit        chan struct{}
	quitOnce    sync.Once
}

func newGameManager(cfg *Config) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		cfg:         cfg,
		shuffle:     pyramid.DefaultShuffler,
		idleTimeout: cfg.sessionTimeout,
		quit:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

var errNoFreeRoom = errors.New("no free room code")

const roomCodeAttempts = 100

// create reserves a new room code and starts its hub.
func (gm *GameManager) create() (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for i := 0; i < roomCodeAttempts; i++ {
		code := strconv.Itoa(1000 + rand.Intn(9000))
		if _, exists := gm.hubs[code]; exists {
			continue
		}

		hub := newHub(gm.cfg, code, gm.shuffle)
		hub.onEnd = gm.remove
		gm.hubs[code] = hub
		go hub.run()

		return hub, nil
	}

	return nil, errNoFreeRoom
}

func (gm *GameManager) lookup(code string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[code]
	if !ok {
		return nil, pyramid.ErrRoomNotFound
	}
	return hub, nil
}

func (gm *GameManager) remove(h *Hub) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.hubs[h.code] == h {
		delete(gm.hubs, h.code)
	}
}

func (gm *GameManager) list() []*Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hubs := make([]*Hub, 0, len(gm.hubs))
	for _, h := range gm.hubs {
		hubs = append(hubs, h)
	}
	return hubs
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.quit:
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	for _, hub := range gm.list() {
		if hub.lastActivity().Before(cutoff) {
			gm.remove(hub)
			hub.stop()
			zap.L().Info("reaped idle room", zap.String("room", hub.code))
		}
	}
}

func (gm *GameManager) close() {
	gm.quitOnce.Do(func() { close(gm.quit) })
	for _, hub := range gm.list() {
		gm.remove(hub)
		hub.stop()
	}
}

func serveCreateRoom(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		hub, err := gm.create()
		if err != nil {
			zap.L().Warn("could not create room", zap.Error(err))
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		logf("GAMES: Created room %s for %s", hub.code, realIP(r))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"room": hub.code})
	}
}

func serveState(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		securityHeaders(cfg, w)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		var (
			view pyramid.View
			err  error
		)
		hub, err := gm.lookup(ps.ByName("room"))
		if err == nil {
			view, err = hub.snapshot()
		}
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(errorMessage(err))
			return
		}

		_ = json.NewEncoder(w).Encode(view)
	}
}

// WebSocket handler that picks the hub based on :room
func serveWS(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		clientID, header := clientIDForUpgrade(r)

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			zap.L().Debug("upgrade failed", zap.String("client_ip", realIP(r)), zap.Error(err))
			return
		}

		refuse := func(err error) {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(errorMessage(err))
			_ = conn.Close()
		}

		hub, err := gm.lookup(ps.ByName("room"))
		if err != nil {
			refuse(err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			clientID: clientID,
		}

		if !hub.registerClient(client) {
			refuse(pyramid.ErrRoomNotFound)
			return
		}

		logf("SERVE: Websocket for room %s to %s", hub.code, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("read failed", zap.String("room", h.code), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "host", "join", "display", "setting", "start", "reveal", "assign":
			if !h.submit(command{client: c, msg: msg}) {
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the room URL using go-qrcode.
func qrHandler(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("room")
		if _, err := gm.lookup(code); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "/" + code

		const qrSize = 320 // readable from across the room
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/pyramid/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "missing client", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetClientID(w, r)

		_, _ = w.Write(data)
	}
}

// registerPyramidGame sets up routes so that:
//   - $path                  → menu (host, join or display)
//   - POST $path/rooms       → reserve a new room code
//   - $path/:room            → HTML client
//   - $path/:room/ws         → WebSocket for that room
//   - $path/:room/qr         → PNG QR code for the room URL
//   - $path/:room/state      → JSON snapshot of the room
func registerPyramidGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	gm := newGameManager(cfg)

	mux.GET(cfg.prefix+path, getIndexHandler(cfg, errs))
	mux.POST(cfg.prefix+path+"/rooms", serveCreateRoom(cfg, gm))
	mux.GET(cfg.prefix+path+"/:room", getIndexHandler(cfg, errs))
	mux.GET(cfg.prefix+path+"/:room/ws", serveWS(cfg, gm))
	mux.GET(cfg.prefix+path+"/:room/qr", qrHandler(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:room/state", serveState(cfg, gm))

	return gm
}
