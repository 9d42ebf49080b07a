package conferences

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"callcenter/internal/calls"
	"callcenter/internal/telephony"
	"callcenter/pkg/logger"
)

// Participant actions accepted by Act.
const (
	ActionMute   = "mute"
	ActionUnmute = "unmute"
	ActionHold   = "hold"
	ActionUnhold = "unhold"
	ActionKick   = "kick"
)

// Provider conference status callback events.
const (
	EventConferenceStart   = "conference-start"
	EventConferenceEnd     = "conference-end"
	EventParticipantJoin   = "participant-join"
	EventParticipantLeave  = "participant-leave"
	EventParticipantMute   = "participant-mute"
	EventParticipantUnmute = "participant-unmute"
	EventParticipantHold   = "participant-hold"
	EventParticipantUnhold = "participant-unhold"
)

// CallLinker ties a conference participant back to its call record. *calls.Engine satisfies it.
type CallLinker interface {
	LinkConference(ctx context.Context, callSID, conferenceSID string) (calls.Call, error)
}

// Event is a provider conference status callback.
type Event struct {
	ConferenceSID string
	FriendlyName  string
	Kind          string
	CallSID       string
	Muted         bool
	Hold          bool
}

// Manager controls conference participants through the provider and keeps the
// local conference records in step with provider callbacks.
type Manager struct {
	store    Store
	provider telephony.Provider
	calls    CallLinker
	clock    func() time.Time
}

func NewManager(store Store, provider telephony.Provider, linker CallLinker) *Manager {
	return &Manager{store: store, provider: provider, calls: linker, clock: time.Now}
}

// Act applies an operator action to one participant. The provider is asked first;
// the local record changes only after it accepted.
func (m *Manager) Act(ctx context.Context, conferenceSID, action, participantSID string) (Conference, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	next, upd, ok := actionEffect(action)
	if !ok {
		return Conference{}, ErrInvalidConferenceAction
	}

	conf, err := m.store.Get(ctx, conferenceSID)
	if err != nil {
		return Conference{}, err
	}
	p, ok := conf.participant(participantSID)
	if !ok || !p.Status.Active() {
		return Conference{}, ErrParticipantNotFound
	}

	if action == ActionKick {
		err = m.provider.RemoveParticipant(ctx, conferenceSID, participantSID)
	} else {
		err = m.provider.UpdateParticipant(ctx, conferenceSID, participantSID, upd)
	}
	if err != nil {
		return Conference{}, err
	}

	now := m.now()
	var leftAt *time.Time
	if next == ParticipantLeft {
		leftAt = &now
	}
	conf, err = m.store.SetParticipantStatus(ctx, conferenceSID, participantSID, next, leftAt)
	if err != nil {
		return Conference{}, err
	}
	if next == ParticipantLeft {
		return m.closeIfEmpty(ctx, conf, now)
	}
	return conf, nil
}

func actionEffect(action string) (ParticipantStatus, telephony.ParticipantUpdate, bool) {
	yes, no := true, false
	switch action {
	case ActionMute:
		return ParticipantMuted, telephony.ParticipantUpdate{Muted: &yes}, true
	case ActionUnmute:
		return ParticipantJoined, telephony.ParticipantUpdate{Muted: &no}, true
	case ActionHold:
		return ParticipantHeld, telephony.ParticipantUpdate{Hold: &yes}, true
	case ActionUnhold:
		return ParticipantJoined, telephony.ParticipantUpdate{Hold: &no}, true
	case ActionKick:
		return ParticipantLeft, telephony.ParticipantUpdate{}, true
	default:
		return "", telephony.ParticipantUpdate{}, false
	}
}

// HandleEvent applies a provider conference callback. Unknown event kinds are ignored.
func (m *Manager) HandleEvent(ctx context.Context, ev Event) (Conference, error) {
	if ev.ConferenceSID == "" {
		return Conference{}, ErrConferenceNotFound
	}
	now := m.now()
	log := logger.From(ctx).With(slog.String("conference_sid", ev.ConferenceSID), slog.String("event", ev.Kind))

	switch ev.Kind {
	case EventConferenceStart:
		return m.open(ctx, ev, now)

	case EventConferenceEnd:
		return m.store.Close(ctx, ev.ConferenceSID, now)

	case EventParticipantJoin:
		if _, err := m.open(ctx, ev, now); err != nil {
			return Conference{}, err
		}
		p := m.participantFor(ctx, ev, now)
		return m.store.AddParticipant(ctx, ev.ConferenceSID, p)

	case EventParticipantLeave:
		conf, err := m.store.SetParticipantStatus(ctx, ev.ConferenceSID, ev.CallSID, ParticipantLeft, &now)
		if errors.Is(err, ErrParticipantNotFound) {
			log.Debug("leave for unknown participant", slog.String("call_sid", ev.CallSID))
			return m.store.Get(ctx, ev.ConferenceSID)
		}
		if err != nil {
			return Conference{}, err
		}
		return m.closeIfEmpty(ctx, conf, now)

	case EventParticipantMute, EventParticipantUnmute, EventParticipantHold, EventParticipantUnhold:
		return m.store.SetParticipantStatus(ctx, ev.ConferenceSID, ev.CallSID, flagsStatus(ev), nil)

	default:
		log.Debug("conference event ignored")
		return m.store.Get(ctx, ev.ConferenceSID)
	}
}

// flagsStatus derives the participant status from the provider's flags. Hold wins over mute.
func flagsStatus(ev Event) ParticipantStatus {
	switch {
	case ev.Hold:
		return ParticipantHeld
	case ev.Muted:
		return ParticipantMuted
	default:
		return ParticipantJoined
	}
}

func (m *Manager) open(ctx context.Context, ev Event, now time.Time) (Conference, error) {
	return m.store.Open(ctx, Conference{
		ConferenceSID: ev.ConferenceSID,
		FriendlyName:  ev.FriendlyName,
		Status:        StatusInProgress,
		StartTime:     now,
	})
}

// participantFor builds the participant for a joining leg. Legs with a call record
// are customers; the rest are agent client legs.
func (m *Manager) participantFor(ctx context.Context, ev Event, now time.Time) Participant {
	p := Participant{SID: ev.CallSID, Role: RoleAgent, Status: flagsStatus(ev), JoinedAt: now}
	if m.calls == nil || ev.CallSID == "" {
		return p
	}
	c, err := m.calls.LinkConference(ctx, ev.CallSID, ev.ConferenceSID)
	if err != nil {
		if !errors.Is(err, calls.ErrCallNotFound) {
			logger.From(ctx).Warn("link conference failed", slog.String("call_sid", ev.CallSID), slog.Any("err", err))
		}
		return p
	}
	p.Role = RoleCustomer
	p.AgentID = c.AgentID
	p.PhoneNumber = c.To
	if c.Direction == calls.DirectionInbound {
		p.PhoneNumber = c.From
	}
	return p
}

func (m *Manager) closeIfEmpty(ctx context.Context, conf Conference, now time.Time) (Conference, error) {
	if conf.Status == StatusCompleted || conf.activeCount() > 0 {
		return conf, nil
	}
	return m.store.Close(ctx, conf.ConferenceSID, now)
}

// SetRecording stores the conference recording reported by the provider.
func (m *Manager) SetRecording(ctx context.Context, conferenceSID string, rec Recording) (Conference, error) {
	return m.store.SetRecording(ctx, conferenceSID, rec)
}

func (m *Manager) Get(ctx context.Context, conferenceSID string) (Conference, error) {
	return m.store.Get(ctx, conferenceSID)
}

func (m *Manager) now() time.Time { return m.clock().UTC() }
