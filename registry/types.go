package registry

import (
	"context"
	"time"

	"github.com/searchnet/chainreg/shared"
)

const (
	// MaxServiceTags caps the number of tags accepted at registration.
	MaxServiceTags = 10

	// RewardPerHeat is the number of units credited to the owner per
	// accepted batch entry.
	RewardPerHeat = 1000
)

// ServiceRecord is the registered metadata of a named service.
// The name is the primary key; records are never deleted.
type ServiceRecord struct {
	Owner    []byte
	Name     []byte
	Endpoint []byte
	Tags     [][]byte

	// RegisteredAt is the registration time in epoch milliseconds.
	RegisteredAt int64

	// Heat is the size of the most recently accepted batch.
	// It is overwritten on every commit, not accumulated.
	Heat uint64
}

// CommitHead is the audit chain tip of a service. Its owner always equals
// the owner of the paired ServiceRecord.
type CommitHead struct {
	Owner []byte

	// RootHash is the digest of the last accepted batch.
	// Empty until the first commit.
	RootHash []byte

	// UpdatedAt is the last chain advance time in epoch milliseconds.
	UpdatedAt int64
}

// Event is a notification emitted by the registry.
type Event interface {
	isEvent()
}

// ChainAdvanced is emitted after a commit moved a service's audit chain.
type ChainAdvanced struct {
	Service   []byte
	Root      shared.RootHash
	UpdatedAt int64
}

func (ChainAdvanced) isEvent() {}

//go:generate mockgen -package mocks -destination mocks/registry.go . Clock,RewardLedger,EventSink

// Clock supplies the current time. It must be monotonically non-decreasing
// across commands.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RewardLedger credits accounts on the external token ledger.
type RewardLedger interface {
	Credit(ctx context.Context, account []byte, amount uint64) error
}

// EventSink accepts append-only notifications. Delivery is fire-and-forget
// from the registry's perspective.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}
