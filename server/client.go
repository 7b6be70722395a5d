package main

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4096
	sendBufSize        = 256
	maxMessagesPerSec  = 50
	maxNameLen         = 16
	maxSessionNameLen  = 30
	defaultMemberName  = "Pilot"
	defaultSessionName = "Arena"
)

// outFrame is one queued WebSocket message
type outFrame struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

// msgBudget allows at most limit inbound messages per second
type msgBudget struct {
	limit int
	used  int
	until time.Time
}

func (b *msgBudget) spend(now time.Time) bool {
	if !now.Before(b.until) {
		b.used = 0
		b.until = now.Add(time.Second)
	}
	b.used++
	return b.used <= b.limit
}

// Client is one WebSocket connection. The budget, session and account fields
// belong to the read goroutine.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan outFrame

	remoteAddr string
	budget     msgBudget
	sessionID  string
	memberID   string

	authPilotID  int64 // 0 for guests
	authUsername string
}

func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan outFrame, sendBufSize),
		remoteAddr: remoteAddr,
		budget:     msgBudget{limit: maxMessagesPerSec},
	}
}

// ReadPump dispatches inbound messages until the connection fails or the
// client floods, then unregisters it.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.conns.Release(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read %s: %v", c.remoteAddr, err)
			}
			return
		}
		if !c.budget.spend(time.Now()) {
			log.Printf("%s exceeded %d msg/s, disconnecting", c.remoteAddr, maxMessagesPerSec)
			return
		}

		if kind == websocket.BinaryMessage {
			if input, ok := DecodeBinaryInput(message); ok {
				c.applyInput(input)
			}
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal %T: %v", msg, err)
		return
	}
	c.SendRaw(data)
}

// SendRaw queues pre-marshaled JSON as a text message
func (c *Client) SendRaw(data []byte) {
	c.enqueue(outFrame{kind: websocket.TextMessage, data: data})
}

// SendBinary queues an encoded frame as a binary message
func (c *Client) SendBinary(data []byte) {
	c.enqueue(outFrame{kind: websocket.BinaryMessage, data: data})
}

// enqueue drops f when the client is slow. The recover covers a send racing
// the hub closing the channel.
func (c *Client) enqueue(f outFrame) {
	defer func() { recover() }()
	select {
	case c.send <- f:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// decode unmarshals a message payload. An absent payload decodes to the
// zero value when optional is set.
func decode[T any](data json.RawMessage, optional bool) (T, bool) {
	var v T
	if len(data) == 0 {
		return v, optional
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}

var handlers = map[string]func(*Client, json.RawMessage){
	MsgList:     func(c *Client, _ json.RawMessage) { c.handleList() },
	MsgCreate:   (*Client).handleCreate,
	MsgJoin:     (*Client).handleJoin,
	MsgInput:    (*Client).handleInput,
	MsgLeave:    func(c *Client, _ json.RawMessage) { c.handleLeave() },
	MsgCheck:    (*Client).handleCheck,
	MsgReset:    (*Client).handleReset,
	MsgRegister: (*Client).handleRegister,
	MsgLogin:    (*Client).handleLogin,
	MsgAuth:     (*Client).handleAuth,
	MsgProfile:  func(c *Client, _ json.RawMessage) { c.handleProfile() },
}

func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("bad message from %s: %v", c.remoteAddr, err)
		return
	}
	if h, ok := handlers[env.T]; ok {
		h(c, env.D)
	}
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.ListSessions()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	msg, ok := decode[CreateMsg](data, true)
	if !ok {
		return
	}
	sess := c.hub.sessions.CreateSession(CleanName(msg.SessionName, defaultSessionName, maxSessionNameLen))
	if sess == nil {
		c.sendError("too many active sessions")
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	msg, ok := decode[JoinMsg](data, false)
	if !ok {
		return
	}
	c.handleLeave()

	sess := c.hub.sessions.GetSession(msg.SessionID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	name := c.authUsername
	if name == "" {
		name = CleanName(msg.Name, defaultMemberName, maxNameLen)
	}
	member := sess.Game.AddPlayer(name, c.authPilotID)
	if member == nil {
		c.sendError("session full")
		return
	}
	c.hub.sessions.MarkActive(sess.ID)
	c.sessionID, c.memberID = sess.ID, member.ID

	// replies go out before the first frame can be queued
	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"sid": sess.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:    member.ID,
		Role:  member.Role,
		Arena: c.hub.sessions.cfg.ArenaSize,
	}})
	sess.Game.SetClient(member.ID, c)
}

func (c *Client) handleInput(data json.RawMessage) {
	if input, ok := decode[ClientInput](data, false); ok {
		c.applyInput(input)
	}
}

// session returns the game the client is in, or nil
func (c *Client) session() *Session {
	if c.sessionID == "" {
		return nil
	}
	return c.hub.sessions.GetSession(c.sessionID)
}

func (c *Client) applyInput(input ClientInput) {
	if sess := c.session(); sess != nil {
		sess.Game.HandleInput(c.memberID, input)
	}
}

func (c *Client) handleReset(data json.RawMessage) {
	msg, ok := decode[ResetMsg](data, true)
	sess := c.session()
	if !ok || sess == nil {
		return
	}
	if !sess.Game.Reset(c.memberID, msg.Full) {
		c.sendError("only the pilot can reset")
	}
}

func (c *Client) handleCheck(data json.RawMessage) {
	msg, ok := decode[CheckMsg](data, false)
	if !ok {
		return
	}
	reply := CheckedMsg{SID: msg.SID}
	if sess := c.hub.sessions.GetSession(msg.SID); sess != nil {
		reply.Exists = true
		reply.Name = sess.Name
		reply.Players = sess.Game.PlayerCount()
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: reply})
}

func (c *Client) handleLeave() {
	if c.sessionID == "" {
		return
	}
	c.hub.sessions.RemovePlayer(c.sessionID, c.memberID)
	c.sessionID, c.memberID = "", ""
}

// accounts reports whether sign-in is available, telling the client if not
func (c *Client) accounts() bool {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return false
	}
	return true
}

func (c *Client) handleRegister(data json.RawMessage) {
	msg, ok := decode[RegisterMsg](data, false)
	if !ok || !c.accounts() {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(authErrorText(err))
		return
	}
	c.signIn(id, strings.TrimSpace(msg.Username), token)
}

func (c *Client) handleLogin(data json.RawMessage) {
	msg, ok := decode[LoginMsg](data, false)
	if !ok || !c.accounts() {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(authErrorText(err))
		return
	}
	c.signIn(id, strings.TrimSpace(msg.Username), token)
}

func (c *Client) handleAuth(data json.RawMessage) {
	msg, ok := decode[AuthMsg](data, false)
	if !ok || !c.accounts() {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.signIn(id, username, msg.Token)
}

// signIn attaches the account to the connection and to its current member
func (c *Client) signIn(id int64, username, token string) {
	c.authPilotID, c.authUsername = id, username
	c.hub.pilots.set(id, c)
	c.hub.analytics.Track(EvtLogin, id, c.sessionID, "")
	if sess := c.session(); sess != nil {
		sess.Game.SetAuth(c.memberID, id)
	}
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: username, PlayerID: id}})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPilotID == 0 {
		c.sendError("not authenticated")
		return
	}
	stats, err := c.hub.db.GetStats(c.authPilotID)
	if err != nil || stats == nil {
		c.sendError("profile not found")
		return
	}
	ach, err := c.hub.db.GetAchievements(c.authPilotID)
	if err != nil {
		log.Printf("achievements for pilot %d: %v", c.authPilotID, err)
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:     c.authUsername,
		Runs:         stats.Runs,
		Kills:        stats.Kills,
		Shots:        stats.Shots,
		BestKills:    stats.BestKills,
		Playtime:     stats.Playtime,
		Achievements: ach,
	}})
}

// authErrorText keeps storage details out of client-facing messages
func authErrorText(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrRateLimited):
		return err.Error()
	}
	var lenErr *validationError
	if errors.As(err, &lenErr) {
		return lenErr.Error()
	}
	log.Printf("auth error: %v", err)
	return "internal error"
}
