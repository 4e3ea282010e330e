package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTranslator captures every batch it is asked to translate.
type recordingTranslator struct {
	mu      sync.Mutex
	batches [][]BatchEntry
	reply   string
	err     error
}

func (rt *recordingTranslator) Translate(_ context.Context, _ string, batch []BatchEntry) (string, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.batches = append(rt.batches, batch)
	return rt.reply, rt.err
}

func (rt *recordingTranslator) calls() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.batches)
}

func testDurations() PhaseDurations {
	return PhaseDurations{
		Question:    30 * time.Millisecond,
		Answer:      250 * time.Millisecond,
		Translation: 1 * time.Second,
	}
}

// playingRoom builds a directory with one started two-player room.
func playingRoom(t *testing.T) (*Directory, *fakeConn, *fakeConn) {
	t.Helper()
	dir := NewDirectory(testLogger())
	host := newFakeConn("conn-host")
	guest := newFakeConn("conn-guest")
	_, err := dir.CreateRoom("ABCD", "Alice", host)
	require.NoError(t, err)
	_, err = dir.JoinRoom("ABCD", "Bob", guest)
	require.NoError(t, err)

	room, ok := dir.Room("ABCD")
	require.True(t, ok)
	room.SetReady("Bob", "conn-guest", true)
	require.True(t, room.StartGame("Alice", "conn-host"))
	return dir, host, guest
}

func waitForRound(t *testing.T, room *Room, want Round) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if room.Status() == StatusPlaying && room.Round() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("room never reached round %q, stuck at %q", want, room.Round())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_CyclesThroughPhases(t *testing.T) {
	dir, _, _ := playingRoom(t)
	translator := &recordingTranslator{reply: "a fine summary"}
	gateway := NewGateway(dir, translator, time.Second, testLogger())
	sched := NewScheduler(dir, gateway, testDurations(), testLogger())

	room, _ := dir.Room("ABCD")
	require.Equal(t, RoundQuestion, room.Round())

	sched.Begin("ABCD")
	waitForRound(t, room, RoundAnswer)

	require.NoError(t, room.Chat("Bob", "conn-guest", "blue", "2026-08-28T12:00:05Z"))
	waitForRound(t, room, RoundTranslation)

	assert.Eventually(t, func() bool { return translator.calls() == 1 },
		time.Second, 10*time.Millisecond, "batch processed exactly once at the answer boundary")
}

func TestScheduler_TranslationFailureDoesNotStallCycle(t *testing.T) {
	dir, _, _ := playingRoom(t)
	translator := &recordingTranslator{err: context.DeadlineExceeded}
	gateway := NewGateway(dir, translator, time.Second, testLogger())
	durations := testDurations()
	durations.Translation = 60 * time.Millisecond
	sched := NewScheduler(dir, gateway, durations, testLogger())

	room, _ := dir.Room("ABCD")
	sched.Begin("ABCD")

	waitForRound(t, room, RoundAnswer)
	waitForRound(t, room, RoundTranslation)
	// Translator failed; the next question phase arrives regardless.
	waitForRound(t, room, RoundQuestion)
}

func TestScheduler_CountdownTicksDuringTranslation(t *testing.T) {
	dir, _, guest := playingRoom(t)
	gateway := NewGateway(dir, nil, time.Second, testLogger())
	durations := PhaseDurations{
		Question:    10 * time.Millisecond,
		Answer:      10 * time.Millisecond,
		Translation: 3 * time.Second,
	}
	sched := NewScheduler(dir, gateway, durations, testLogger())

	room, _ := dir.Room("ABCD")
	sched.Begin("ABCD")
	waitForRound(t, room, RoundTranslation)

	assert.Eventually(t, func() bool {
		return len(guest.messagesOfType("TRANSLATION_COUNTDOWN")) >= 2
	}, 3*time.Second, 20*time.Millisecond, "per-second ticks during translation")
}

func TestScheduler_ResetStopsCycle(t *testing.T) {
	dir, _, _ := playingRoom(t)
	gateway := NewGateway(dir, nil, time.Second, testLogger())
	sched := NewScheduler(dir, gateway, testDurations(), testLogger())

	room, _ := dir.Room("ABCD")
	sched.Begin("ABCD")
	waitForRound(t, room, RoundAnswer)

	require.True(t, room.Reset("Alice", "conn-host"))
	assert.Equal(t, StatusWaiting, room.Status())

	// The armed timer fires into a waiting room and must change nothing.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusWaiting, room.Status())
	assert.Empty(t, string(room.Round()))
}

func TestScheduler_DeadRoomStopsCycle(t *testing.T) {
	dir, _, _ := playingRoom(t)
	gateway := NewGateway(dir, nil, time.Second, testLogger())
	sched := NewScheduler(dir, gateway, testDurations(), testLogger())

	sched.Begin("ABCD")
	dir.RemoveConnection("conn-host")
	dir.RemoveConnection("conn-guest")
	assert.Equal(t, 0, dir.RoomCount())

	// No panic, no resurrection: the timer callback finds nothing.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, dir.RoomCount())
}
