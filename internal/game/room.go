package game

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/park285/charades-server/internal/domain"
)

const (
	DefaultMaxPlayers = 8
	codeAttempts      = 20
	minNameRunes      = 2
	maxNameRunes      = 24

	codeSpace = 10000
	// largest multiple of codeSpace that fits in 16 bits; draws at or above it are redrawn
	codeDrawLimit = 60000
)

var roomCodePattern = regexp.MustCompile(`^\d{4}$`)

// newPlayerID is swapped in tests that need stable ids.
var newPlayerID = uuid.NewString

func ValidRoomCode(code string) bool { return roomCodePattern.MatchString(code) }

// ValidatePlayerName trims the name and checks its length.
func ValidatePlayerName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if c := utf8.RuneCountInString(n); c < minNameRunes || c > maxNameRunes {
		return "", ErrInvalidPlayerName
	}
	return n, nil
}

type CreateParams struct {
	HostName      string
	ExistingCodes map[string]bool
	Defaults      domain.GameConfig
	Overrides     *domain.ConfigOverrides
	MaxPlayers    int
	Now           int64
	// Rand feeds code generation; nil uses crypto/rand.
	Rand io.Reader
}

// CreateRoom opens a new waiting room with the host as its only player.
func CreateRoom(p CreateParams) (*domain.GameState, domain.Player, error) {
	name, err := ValidatePlayerName(p.HostName)
	if err != nil {
		return nil, domain.Player{}, err
	}
	cfg := p.Defaults.Apply(p.Overrides)
	if cfg.RoundDurationMs <= 0 || cfg.GracePeriodMs < 0 || cfg.MaxSabotages < 0 {
		return nil, domain.Player{}, ErrInvalidData
	}
	code, err := allocateCode(p.Rand, p.ExistingCodes)
	if err != nil {
		return nil, domain.Player{}, err
	}
	maxPlayers := p.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}

	host := domain.Player{
		ID:               newPlayerID(),
		Name:             name,
		ConnectionStatus: domain.ConnConnected,
		JoinedAt:         p.Now,
	}
	st := &domain.GameState{
		Room: domain.Room{
			Code:       code,
			Players:    []domain.Player{host},
			Status:     domain.RoomWaiting,
			CreatedAt:  p.Now,
			MaxPlayers: maxPlayers,
		},
		Scores:       map[string]int{host.ID: 0},
		GameConfig:   cfg,
		RoundHistory: []domain.CompletedRound{},
	}
	return st, host, nil
}

func allocateCode(r io.Reader, taken map[string]bool) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var buf [2]byte
	for attempts, draws := 0, 0; attempts < codeAttempts && draws < 4*codeAttempts; draws++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("room code entropy: %w", err)
		}
		code, ok := codeFromDraw(binary.BigEndian.Uint16(buf[:]))
		if !ok {
			continue
		}
		attempts++
		if !taken[code] {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

// codeFromDraw maps a 16-bit draw onto 0000-9999 without modulo bias.
func codeFromDraw(v uint16) (string, bool) {
	if v >= codeDrawLimit {
		return "", false
	}
	return fmt.Sprintf("%04d", int(v)%codeSpace), true
}

// JoinRoom appends a new connected player. Checks run full, then status,
// then name collision.
func JoinRoom(s *domain.GameState, name string, now int64) (*domain.GameState, domain.Player, error) {
	n, err := ValidatePlayerName(name)
	if err != nil {
		return nil, domain.Player{}, err
	}
	if len(s.Room.Players) >= s.Room.MaxPlayers {
		return nil, domain.Player{}, ErrRoomFull
	}
	if s.Room.Status != domain.RoomWaiting {
		return nil, domain.Player{}, ErrGameInProgress
	}
	for _, p := range s.Room.Players {
		if strings.EqualFold(p.Name, n) {
			return nil, domain.Player{}, ErrPlayerNameTaken
		}
	}

	pl := domain.Player{
		ID:               newPlayerID(),
		Name:             n,
		ConnectionStatus: domain.ConnConnected,
		JoinedAt:         now,
	}
	out := s.Clone()
	out.Room.Players = append(out.Room.Players, pl)
	out.Scores[pl.ID] = 0
	return out, pl, nil
}

// LeaveRoom removes the player and their score. It returns (nil, nil) when
// the room became empty. If the player was acting or directing the active
// round, that round is dropped without scoring.
func LeaveRoom(s *domain.GameState, playerID string) (*domain.GameState, error) {
	idx := s.Room.IndexOf(playerID)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	out := s.Clone()
	out.Room.Players = append(out.Room.Players[:idx], out.Room.Players[idx+1:]...)
	delete(out.Scores, playerID)
	if len(out.Room.Players) == 0 {
		return nil, nil
	}
	if r := out.ActiveRound(); r != nil && (r.ActorID == playerID || r.DirectorID == playerID) {
		out.CurrentRound = nil
	}
	return out, nil
}

func SetConnectionStatus(s *domain.GameState, playerID string, status domain.ConnectionStatus) (*domain.GameState, error) {
	idx := s.Room.IndexOf(playerID)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	out := s.Clone()
	out.Room.Players[idx].ConnectionStatus = status
	return out, nil
}

// ResetGame returns a finished room to the lobby with the same players.
func ResetGame(s *domain.GameState) *domain.GameState {
	out := s.Clone()
	out.Room.Status = domain.RoomWaiting
	out.CurrentRound = nil
	out.RoundHistory = []domain.CompletedRound{}
	out.RoundsStarted = 0
	out.Scores = make(map[string]int, len(out.Room.Players))
	for _, p := range out.Room.Players {
		out.Scores[p.ID] = 0
	}
	return out
}
