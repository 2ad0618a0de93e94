package gemplay

// Game statuses as reported by GET /games/{id}.
const (
	StatusWaiting   = "WAITING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Moves accepted by game create/join.
const (
	MoveRock     = "rock"
	MovePaper    = "paper"
	MoveScissors = "scissors"
)

// Bot kinds as exposed on available games.
const (
	BotRegular = "REGULAR"
	BotHuman   = "HUMAN"
)

// User is a registration payload.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender,omitempty"`
}

// Credentials is a login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is an authenticated user.
type Session struct {
	User   User
	UserID string
	Token  string
}

// CreateGameRequest is the body of POST /games/create.
type CreateGameRequest struct {
	Move    string         `json:"move"`
	BetGems map[string]int `json:"bet_gems"`
}

// JoinGameRequest is the body of POST /games/{id}/join.
type JoinGameRequest struct {
	Move string         `json:"move"`
	Gems map[string]int `json:"gems"`
}

// RegularBot is the body of POST /admin/bots/create-regular and
// PUT /admin/bots/{id}.
type RegularBot struct {
	Name               string  `json:"name"`
	MinBetAmount       float64 `json:"min_bet_amount"`
	MaxBetAmount       float64 `json:"max_bet_amount"`
	CycleGames         int     `json:"cycle_games"`
	WinsPercentage     float64 `json:"wins_percentage"`
	LossesPercentage   float64 `json:"losses_percentage"`
	DrawsPercentage    float64 `json:"draws_percentage"`
	PauseBetweenCycles int     `json:"pause_between_cycles"`
	CreationMode       string  `json:"creation_mode,omitempty"`
}

// HumanBot is the body of POST /admin/human-bots and PUT /admin/human-bots/{id}.
type HumanBot struct {
	Name            string  `json:"name"`
	Character       string  `json:"character"`
	Gender          string  `json:"gender,omitempty"`
	MinBet          float64 `json:"min_bet"`
	MaxBet          float64 `json:"max_bet"`
	BetLimit        int     `json:"bet_limit,omitempty"`
	MinDelay        int     `json:"min_delay"`
	MaxDelay        int     `json:"max_delay"`
	UseCommitReveal bool    `json:"use_commit_reveal"`
	IsActive        bool    `json:"is_active"`
}

// Gems returns a single-type gem bet.
func Gems(gemType string, qty int) map[string]int {
	return map[string]int{gemType: qty}
}
