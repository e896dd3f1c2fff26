package session

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxPlayers is the room capacity used when nothing is configured.
	DefaultMaxPlayers = 4

	minCapacity = 1
	maxCapacity = 255
)

// Return codes reported by the relay with JoinRandomFailed and RoomCreateFailed.
const (
	CodeInternalError       int16 = -1
	CodeNoMatchFound        int16 = 32760
	CodeGameClosed          int16 = 32764
	CodeGameFull            int16 = 32765
	CodeGameIDAlreadyExists int16 = 32766
)

// SessionDescriptor describes a joinable room. ID may be empty until the
// relay assigns one. Once joined it is treated as immutable.
type SessionDescriptor struct {
	ID       string
	Capacity uint8
	Version  string
}

// RoomOptions is what a createRoom request carries on the wire.
type RoomOptions struct {
	MaxPlayers uint8
	Version    string
}

func (d SessionDescriptor) Options() RoomOptions {
	return RoomOptions{MaxPlayers: d.Capacity, Version: d.Version}
}

// DefaultRoomOptions builds the descriptor for a new room holding maxPlayers.
// Capacity travels as a single byte, so maxPlayers must lie in [1, 255].
func DefaultRoomOptions(maxPlayers int) (SessionDescriptor, error) {
	if maxPlayers < minCapacity || maxPlayers > maxCapacity {
		return SessionDescriptor{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidCapacity, maxPlayers, minCapacity, maxCapacity)
	}
	return SessionDescriptor{Capacity: uint8(maxPlayers)}, nil
}

// VersionsCompatible reports whether two clients may be matched together.
func VersionsCompatible(a, b string) bool {
	return a == b
}

// RetryPolicy shapes the delays the presentation layer waits between
// user-visible reconnect attempts. The core never retries on its own.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// NewBackOff returns a fresh exponential backoff. A zero MaxElapsedTime means
// retry forever.
func (r RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	b.MaxElapsedTime = r.MaxElapsedTime
	b.Reset()
	return b
}

// Policy is the client's matchmaking configuration.
type Policy struct {
	Version    string
	MaxPlayers int
	// AutoJoin makes the client join a random room as soon as the service
	// connection is up.
	AutoJoin bool
	Retry    RetryPolicy
}

func DefaultPolicy(version string) Policy {
	return Policy{
		Version:    version,
		MaxPlayers: DefaultMaxPlayers,
		AutoJoin:   true,
		Retry:      DefaultRetryPolicy(),
	}
}

// Validate checks the policy once at startup.
func (p Policy) Validate() error {
	if p.Version == "" {
		return ErrInvalidVersion
	}
	_, err := DefaultRoomOptions(p.MaxPlayers)
	return err
}

// RoomOptions returns the descriptor used when this client creates a room.
func (p Policy) RoomOptions() (SessionDescriptor, error) {
	d, err := DefaultRoomOptions(p.MaxPlayers)
	if err != nil {
		return SessionDescriptor{}, err
	}
	d.Version = p.Version
	return d, nil
}

// CreateOnJoinFailure decides whether a failed random join should fall back
// to creating a room.
func (p Policy) CreateOnJoinFailure(code int16) bool {
	return code == CodeNoMatchFound
}
