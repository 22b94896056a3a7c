package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// ObserverTokenSource signs hidden observer tokens.
type ObserverTokenSource interface {
	MintObserver(room, identity string) (string, error)
}

// LiveKitJoiner watches rooms through the LiveKit server SDK.
type LiveKitJoiner struct {
	tokens ObserverTokenSource
	logger *zap.Logger
}

func NewLiveKitJoiner(tokens ObserverTokenSource, logger *zap.Logger) *LiveKitJoiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveKitJoiner{tokens: tokens, logger: logger.With(zap.String("component", "room"))}
}

type liveKitRoom struct {
	once     sync.Once
	room     *lksdk.Room
	presence *presence
}

func (r *liveKitRoom) Leave() {
	r.once.Do(func() {
		r.presence.close()
		r.room.Disconnect()
	})
}

// Join connects as a hidden observer. The SDK connect call is not
// cancellable, so a cancelled ctx abandons it and disconnects once it lands.
func (j *LiveKitJoiner) Join(ctx context.Context, target Target, listener Listener) (Room, error) {
	if target.URL == "" || target.Room == "" {
		return nil, ErrEmptyTarget
	}

	identity := "observer-" + uuid.NewString()[:8]
	token, err := j.tokens.MintObserver(target.Room, identity)
	if err != nil {
		return nil, fmt.Errorf("mint observer token: %w", err)
	}

	p := newPresence(listener)
	logger := j.logger.With(zap.String("room", target.Room))

	cb := lksdk.NewRoomCallback()
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		logger.Debug("participant connected", zap.String("identity", rp.Identity()))
		p.joined(rp.Identity(), isAgentKind(rp))
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		logger.Debug("participant disconnected", zap.String("identity", rp.Identity()))
		p.left(rp.Identity())
	}
	cb.OnDisconnected = func() {
		logger.Info("room disconnected")
		p.setConnected(false)
	}

	type result struct {
		room *lksdk.Room
		err  error
	}
	resC := make(chan result, 1)
	go func() {
		r, err := lksdk.ConnectToRoomWithToken(target.URL, token, cb, lksdk.WithAutoSubscribe(false))
		resC <- result{room: r, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resC; res.err == nil {
				res.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case res := <-resC:
		if res.err != nil {
			return nil, fmt.Errorf("connect to room %s: %w", target.Room, res.err)
		}

		p.setConnected(true)
		for _, rp := range res.room.GetRemoteParticipants() {
			p.joined(rp.Identity(), isAgentKind(rp))
		}
		logger.Info("observing room", zap.String("identity", identity))
		return &liveKitRoom{room: res.room, presence: p}, nil
	}
}

func isAgentKind(rp *lksdk.RemoteParticipant) bool {
	return livekit.ParticipantInfo_Kind(rp.Kind()) == livekit.ParticipantInfo_AGENT
}
