package game

import (
	"time"

	"go.uber.org/zap"
)

// PhaseDurations configures how long each phase of the round cycle lasts.
type PhaseDurations struct {
	Question    time.Duration
	Answer      time.Duration
	Translation time.Duration
}

// DefaultPhaseDurations matches the pacing a round of the game is tuned for.
func DefaultPhaseDurations() PhaseDurations {
	return PhaseDurations{
		Question:    20 * time.Second,
		Answer:      45 * time.Second,
		Translation: 15 * time.Second,
	}
}

func (pd PhaseDurations) forRound(round Round) time.Duration {
	switch round {
	case RoundQuestion:
		return pd.Question
	case RoundAnswer:
		return pd.Answer
	default:
		return pd.Translation
	}
}

// Scheduler drives each playing room through the question, answer,
// translation cycle on wall-clock timers. Rooms self-perpetuate: every
// phase transition arms the timer for the next one, until the room resets
// or dies. The scheduler holds no per-room state of its own; liveness is
// re-checked against the directory on every firing.
type Scheduler struct {
	dir       *Directory
	gateway   *Gateway
	durations PhaseDurations
	logger    *zap.Logger
}

// NewScheduler creates a scheduler over the given directory and gateway.
func NewScheduler(dir *Directory, gateway *Gateway, durations PhaseDurations, logger *zap.Logger) *Scheduler {
	return &Scheduler{dir: dir, gateway: gateway, durations: durations, logger: logger}
}

// Begin arms the first phase timer for a room that just started playing.
//
// Precondition: the room has transitioned to playing in the question phase.
func (s *Scheduler) Begin(roomKey string) {
	room, ok := s.dir.Room(roomKey)
	if !ok {
		return
	}
	s.logger.Debug("round cycle started", zap.String("room", roomKey))
	room.ArmTimer(s.durations.Question, func() { s.advance(roomKey) })
}

// advance is the timer callback: move the room one phase forward, kick off
// translation work at the answer boundary, and re-arm for the next phase.
// A room that reset or died since the timer was armed is left alone.
func (s *Scheduler) advance(roomKey string) {
	room, ok := s.dir.Room(roomKey)
	if !ok {
		return
	}
	next, batch, seq, ok := room.AdvanceRound()
	if !ok {
		return
	}
	s.logger.Debug("phase advanced",
		zap.String("room", roomKey),
		zap.String("round", string(next)),
	)

	if next == RoundTranslation {
		go s.gateway.ProcessPending(roomKey, batch)
		go s.runCountdown(room, seq)
	}

	room.ArmTimer(s.durations.forRound(next), func() { s.advance(roomKey) })
}

// runCountdown emits one TRANSLATION_COUNTDOWN tick per second for the
// remainder of the translation phase. The loop exits as soon as a tick is
// rejected, which happens the moment the phase sequence moves on.
func (s *Scheduler) runCountdown(room *Room, seq int) {
	remaining := int(s.durations.Translation / time.Second)
	if !room.CountdownTick(seq, remaining) {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		remaining--
		if remaining <= 0 {
			return
		}
		if !room.CountdownTick(seq, remaining) {
			return
		}
	}
}
