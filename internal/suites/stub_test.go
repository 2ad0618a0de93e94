package suites

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gemplay-qa/gemcheck/internal/expect"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

const (
	stubAdminEmail    = "admin@gemplay.test"
	stubAdminPassword = "secret"
	stubGemPrice      = 1.0
	stubCommission    = 0.03
)

type stubUser struct {
	id, username, email, password string
	admin                         bool
	balance, frozen               float64
	gems                          map[string]int
}

type stubGame struct {
	id, creator, opponent string
	status                string
	bet                   float64
	gems                  map[string]int
	regular               bool
}

type stubNotification struct {
	id   string
	kind string
	read bool
}

// stubGemPlay is an in-memory stand-in for the GemPlay API, just faithful
// enough for every built-in suite to pass against it.
type stubGemPlay struct {
	mu        sync.Mutex
	seq       int
	users     map[string]*stubUser // by email
	tokens    map[string]*stubUser
	games     map[string]*stubGame
	notifs    map[string][]*stubNotification // by user id, newest first
	bots      map[string]gin.H
	betPolls  map[string]int
	humanBots map[string]gin.H

	logins map[string]int // by email

	// Faults a suite is expected to catch.
	failRegister       bool
	commissionRate     float64 // overrides stubCommission when set
	betOutOfRange      bool
	leaveKeepsOpponent bool
	leaveKeepsFrozen   bool
	markReadIgnored    bool
	skewCycles         bool
	adminTokenTTL      time.Duration // admin gets an expiring JWT when set
}

func newStubGemPlay(t *testing.T) (*stubGemPlay, *httptest.Server) {
	t.Helper()
	s := &stubGemPlay{
		users:     make(map[string]*stubUser),
		tokens:    make(map[string]*stubUser),
		games:     make(map[string]*stubGame),
		notifs:    make(map[string][]*stubNotification),
		bots:      make(map[string]gin.H),
		betPolls:  make(map[string]int),
		humanBots: make(map[string]gin.H),
		logins:    make(map[string]int),
	}
	s.users[stubAdminEmail] = &stubUser{
		id: "admin", username: "admin", email: stubAdminEmail, password: stubAdminPassword,
		admin: true, gems: map[string]int{},
	}
	s.games["bot-game"] = &stubGame{
		id: "bot-game", creator: "regular-bot", status: gemplay.StatusWaiting,
		bet: 5, gems: map[string]int{"Ruby": 5}, regular: true,
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	s.routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *stubGemPlay) loginCount(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins[email]
}

func (s *stubGemPlay) rate() float64 {
	if s.commissionRate != 0 {
		return s.commissionRate
	}
	return stubCommission
}

func (s *stubGemPlay) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *stubGemPlay) routes(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.Next()
	})

	r.POST("/auth/register", s.register)
	r.POST("/auth/verify-email", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "verified"}) })
	r.POST("/auth/login", s.login)

	u := r.Group("/", s.authenticate)
	u.GET("/auth/me", func(c *gin.Context) {
		me := current(c)
		c.JSON(http.StatusOK, gin.H{"id": me.id, "email": me.email, "username": me.username})
	})
	u.POST("/auth/add-balance", func(c *gin.Context) {
		amount, _ := strconv.ParseFloat(c.Query("amount"), 64)
		current(c).balance += amount
		c.JSON(http.StatusOK, gin.H{"virtual_balance": current(c).balance})
	})
	u.POST("/gems/buy", s.buyGems)
	u.POST("/gems/sell", s.sellGems)
	u.GET("/gems/inventory", func(c *gin.Context) {
		var out []gin.H
		for k, v := range current(c).gems {
			out = append(out, gin.H{"type": k, "quantity": v, "frozen_quantity": 0})
		}
		c.JSON(http.StatusOK, out)
	})
	u.GET("/economy/balance", func(c *gin.Context) {
		me := current(c)
		c.JSON(http.StatusOK, gin.H{"virtual_balance": me.balance, "frozen_balance": me.frozen})
	})

	u.POST("/games/create", s.createGame)
	u.GET("/games/available", s.availableGames)
	u.GET("/games/my-games", s.myGames)
	u.GET("/games/:id", s.getGame)
	u.POST("/games/:id/join", s.joinGame)
	u.POST("/games/:id/leave", s.leaveGame)
	u.DELETE("/games/:id/cancel", s.cancelGame)

	u.GET("/notifications", s.listNotifications)
	u.GET("/notifications/unread-count", func(c *gin.Context) {
		n := 0
		for _, nt := range s.notifs[current(c).id] {
			if !nt.read {
				n++
			}
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	})
	u.PUT("/notifications/mark-all-as-read", func(c *gin.Context) {
		for _, nt := range s.notifs[current(c).id] {
			nt.read = true
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	u.PUT("/notifications/:id/mark-as-read", func(c *gin.Context) {
		for _, nt := range s.notifs[current(c).id] {
			if nt.id == c.Param("id") {
				nt.read = !s.markReadIgnored
				c.JSON(http.StatusOK, gin.H{"success": true})
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"detail": "Notification not found"})
	})

	a := r.Group("/admin", s.authenticate, requireAdmin)
	a.GET("/bots", func(c *gin.Context) {
		list := []gin.H{}
		for _, b := range s.bots {
			list = append(list, b)
		}
		c.JSON(http.StatusOK, gin.H{"bots": list, "total": len(list)})
	})
	a.POST("/bots/create-regular", s.createBot)
	a.GET("/bots/:id", func(c *gin.Context) { s.show(c, s.bots) })
	a.PUT("/bots/:id", func(c *gin.Context) { s.update(c, s.bots) })
	a.POST("/bots/:id/toggle-status", func(c *gin.Context) { s.toggle(c, s.bots) })
	a.DELETE("/bots/:id", func(c *gin.Context) { s.remove(c, s.bots) })
	a.GET("/bots/:id/active-bets", s.activeBets)
	a.GET("/bots/:id/cycle-history", s.cycleHistory)

	a.GET("/human-bots", func(c *gin.Context) {
		var list []gin.H
		for _, b := range s.humanBots {
			list = append(list, b)
		}
		c.JSON(http.StatusOK, gin.H{"bots": list, "total": len(list)})
	})
	a.POST("/human-bots", s.createHumanBot)
	a.GET("/human-bots/stats", func(c *gin.Context) {
		active := 0
		for _, b := range s.humanBots {
			if b["is_active"] == true {
				active++
			}
		}
		c.JSON(http.StatusOK, gin.H{"total_bots": len(s.humanBots), "active_bots": active})
	})
	a.GET("/human-bots/:id", func(c *gin.Context) { s.show(c, s.humanBots) })
	a.PUT("/human-bots/:id", func(c *gin.Context) { s.update(c, s.humanBots) })
	a.POST("/human-bots/:id/toggle-status", func(c *gin.Context) { s.toggle(c, s.humanBots) })
	a.DELETE("/human-bots/:id", func(c *gin.Context) { s.remove(c, s.humanBots) })

	a.GET("/profit/stats", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"total_profit": 0}) })
	a.GET("/profit/commission-summary", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"total_commission": 0}) })
}

func (s *stubGemPlay) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	u, ok := s.tokens[token]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	c.Set("user", u)
}

func requireAdmin(c *gin.Context) {
	if !current(c).admin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Admin only"})
	}
}

func current(c *gin.Context) *stubUser {
	return c.MustGet("user").(*stubUser)
}

func (s *stubGemPlay) register(c *gin.Context) {
	if s.failRegister {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "database unavailable"})
		return
	}
	var body gemplay.User
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid body"})
		return
	}
	if _, dup := s.users[body.Email]; dup {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered"})
		return
	}
	u := &stubUser{
		id: s.nextID("user"), username: body.Username, email: body.Email,
		password: body.Password, gems: map[string]int{},
	}
	s.users[u.email] = u
	c.JSON(http.StatusOK, gin.H{"user_id": u.id, "verification_token": "vt-" + u.id})
}

func (s *stubGemPlay) login(c *gin.Context) {
	var body gemplay.Credentials
	_ = c.ShouldBindJSON(&body)
	u, ok := s.users[body.Email]
	if !ok || u.password != body.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}
	s.logins[u.email]++
	token := "tok-" + u.id
	if u.admin && s.adminTokenTTL > 0 {
		claims := jwt.MapClaims{"sub": u.id, "exp": time.Now().Add(s.adminTokenTTL).Unix(), "n": s.logins[u.email]}
		token, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("stub-key"))
	}
	s.tokens[token] = u
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         gin.H{"id": u.id, "username": u.username, "email": u.email},
	})
}

func (s *stubGemPlay) buyGems(c *gin.Context) {
	me := current(c)
	qty, _ := strconv.Atoi(c.Query("quantity"))
	cost := float64(qty) * stubGemPrice
	if qty <= 0 || cost > me.balance-me.frozen {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Insufficient balance"})
		return
	}
	me.balance -= cost
	me.gems[c.Query("gem_type")] += qty
	c.JSON(http.StatusOK, gin.H{"success": true, "cost": cost})
}

func (s *stubGemPlay) sellGems(c *gin.Context) {
	me := current(c)
	qty, _ := strconv.Atoi(c.Query("quantity"))
	gemType := c.Query("gem_type")
	if qty <= 0 || qty > me.gems[gemType] {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Not enough gems"})
		return
	}
	me.gems[gemType] -= qty
	me.balance += float64(qty) * stubGemPrice
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func gemValue(gems map[string]int) float64 {
	total := 0.0
	for _, n := range gems {
		total += float64(n) * stubGemPrice
	}
	return total
}

func (s *stubGemPlay) createGame(c *gin.Context) {
	me := current(c)
	var body gemplay.CreateGameRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	g := &stubGame{
		id: s.nextID("game"), creator: me.id, status: gemplay.StatusWaiting,
		bet: gemValue(body.BetGems), gems: body.BetGems,
	}
	s.games[g.id] = g
	me.frozen += g.bet * s.rate()
	c.JSON(http.StatusOK, gin.H{"game_id": g.id, "bet_amount": g.bet, "status": g.status})
}

func (s *stubGemPlay) gameView(g *stubGame) gin.H {
	view := gin.H{
		"id": g.id, "status": g.status, "creator_id": g.creator,
		"bet_amount": g.bet, "bet_gems": g.gems,
		"opponent_id": nil, "active_deadline": nil,
	}
	if g.regular {
		view["bot_type"] = gemplay.BotRegular
	}
	if g.opponent != "" {
		view["opponent_id"] = g.opponent
	}
	if g.status == gemplay.StatusActive {
		view["active_deadline"] = "2026-01-01T00:01:00Z"
	}
	return view
}

func (s *stubGemPlay) availableGames(c *gin.Context) {
	var out []gin.H
	for _, g := range s.games {
		if g.status == gemplay.StatusWaiting {
			out = append(out, s.gameView(g))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *stubGemPlay) myGames(c *gin.Context) {
	me := current(c)
	out := []gin.H{}
	for _, g := range s.games {
		if g.creator == me.id || g.opponent == me.id {
			out = append(out, s.gameView(g))
		}
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

func (s *stubGemPlay) getGame(c *gin.Context) {
	g, ok := s.games[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, s.gameView(g))
}

func (s *stubGemPlay) userByID(id string) *stubUser {
	for _, u := range s.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (s *stubGemPlay) joinGame(c *gin.Context) {
	me := current(c)
	g, ok := s.games[c.Param("id")]
	switch {
	case !ok:
		c.JSON(http.StatusNotFound, gin.H{"detail": "Game not found"})
		return
	case g.creator == me.id:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cannot join your own game"})
		return
	case g.status != gemplay.StatusWaiting:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Game is not available"})
		return
	}
	g.opponent = me.id
	g.status = gemplay.StatusActive
	if !g.regular {
		me.frozen += g.bet * s.rate()
		s.notifs[g.creator] = append([]*stubNotification{{id: s.nextID("notif"), kind: "GAME_JOINED"}}, s.notifs[g.creator]...)
	}
	c.JSON(http.StatusOK, gin.H{"game_id": g.id, "status": g.status})
}

func (s *stubGemPlay) leaveGame(c *gin.Context) {
	me := current(c)
	g, ok := s.games[c.Param("id")]
	if !ok || g.opponent != me.id || g.status != gemplay.StatusActive {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cannot leave this game"})
		return
	}
	if !s.leaveKeepsOpponent {
		g.opponent = ""
	}
	g.status = gemplay.StatusWaiting
	if !g.regular && !s.leaveKeepsFrozen {
		me.frozen -= g.bet * s.rate()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *stubGemPlay) cancelGame(c *gin.Context) {
	me := current(c)
	g, ok := s.games[c.Param("id")]
	if !ok || g.creator != me.id || g.status != gemplay.StatusWaiting {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cannot cancel this game"})
		return
	}
	g.status = gemplay.StatusCancelled
	me.frozen -= g.bet * s.rate()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *stubGemPlay) listNotifications(c *gin.Context) {
	var out []gin.H
	for _, nt := range s.notifs[current(c).id] {
		out = append(out, gin.H{"id": nt.id, "type": nt.kind, "is_read": nt.read})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (s *stubGemPlay) createBot(c *gin.Context) {
	var body gemplay.RegularBot
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	id := s.nextID("bot")
	s.bots[id] = gin.H{
		"id": id, "name": body.Name, "is_active": true,
		"min_bet_amount": body.MinBetAmount, "max_bet_amount": body.MaxBetAmount,
		"wins_percentage": body.WinsPercentage, "losses_percentage": body.LossesPercentage,
		"draws_percentage": body.DrawsPercentage, "pause_between_cycles": body.PauseBetweenCycles,
		"cycle_games":        body.CycleGames,
		"cycle_total_amount": (body.MinBetAmount + body.MaxBetAmount) / 2 * float64(body.CycleGames),
	}
	c.JSON(http.StatusOK, gin.H{"bot_id": id, "message": "created"})
}

// activeBets reports no bets on the first poll so suites have to wait.
func (s *stubGemPlay) activeBets(c *gin.Context) {
	b, ok := s.bots[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Bot not found"})
		return
	}
	s.betPolls[c.Param("id")]++
	if s.betPolls[c.Param("id")] < 2 {
		c.JSON(http.StatusOK, gin.H{"bets": []gin.H{}})
		return
	}
	minBet, maxBet := b["min_bet_amount"].(float64), b["max_bet_amount"].(float64)
	if s.betOutOfRange {
		maxBet++
	}
	c.JSON(http.StatusOK, gin.H{"bets": []gin.H{
		{"bet_amount": minBet}, {"bet_amount": (minBet + maxBet) / 2}, {"bet_amount": maxBet},
	}})
}

// cycleHistory reports one completed cycle played to the bot's targets
// and one cycle still in progress.
func (s *stubGemPlay) cycleHistory(c *gin.Context) {
	b, ok := s.bots[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Bot not found"})
		return
	}
	games := b["cycle_games"].(int)
	split, err := expect.Distribution(b["wins_percentage"].(float64), b["losses_percentage"].(float64),
		b["draws_percentage"].(float64), games)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if s.skewCycles {
		split.Wins++
		split.Draws--
	}
	c.JSON(http.StatusOK, gin.H{"cycles": []gin.H{
		{"cycle_number": 1, "wins": split.Wins, "losses": split.Losses, "draws": split.Draws, "total_games": games},
		{"cycle_number": 2, "wins": 1, "losses": 0, "draws": 0, "total_games": 1},
	}})
}

func (s *stubGemPlay) createHumanBot(c *gin.Context) {
	var body gemplay.HumanBot
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	id := s.nextID("hb")
	s.humanBots[id] = gin.H{
		"id": id, "name": body.Name, "character": body.Character,
		"min_bet": body.MinBet, "max_bet": body.MaxBet, "is_active": body.IsActive,
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *stubGemPlay) update(c *gin.Context, m map[string]gin.H) {
	b, ok := m[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	for k, v := range body {
		b[k] = v
	}
	c.JSON(http.StatusOK, b)
}

func (s *stubGemPlay) show(c *gin.Context, m map[string]gin.H) {
	b, ok := m[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("%s not found", c.Param("id"))})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *stubGemPlay) toggle(c *gin.Context, m map[string]gin.H) {
	b, ok := m[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	active, _ := b["is_active"].(bool)
	b["is_active"] = !active
	c.JSON(http.StatusOK, gin.H{"is_active": !active})
}

func (s *stubGemPlay) remove(c *gin.Context, m map[string]gin.H) {
	if _, ok := m[c.Param("id")]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	delete(m, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
