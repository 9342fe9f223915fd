package yearbook

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// denyAllOracle is the default when no oracle is wired: nobody owns
// anything, nobody purchased anything.
type denyAllOracle struct{}

func (denyAllOracle) HasPurchased(ctx context.Context, actorID, schoolID uuid.UUID, year int) (bool, error) {
	return false, nil
}

func (denyAllOracle) OwnsDocument(ctx context.Context, actorID, documentID uuid.UUID) (bool, error) {
	return false, nil
}

// StaticOracle is an in-memory PurchaseOracle useful for tests and for
// standing the service up before the payments subsystem is reachable.
type StaticOracle struct {
	mu        sync.RWMutex
	owners    map[uuid.UUID]map[uuid.UUID]bool // documentID -> actorID
	purchases map[purchaseKey]bool
}

type purchaseKey struct {
	actorID  uuid.UUID
	schoolID uuid.UUID
	year     int
}

// NewStaticOracle creates an empty static oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		owners:    make(map[uuid.UUID]map[uuid.UUID]bool),
		purchases: make(map[purchaseKey]bool),
	}
}

// GrantOwnership records that the actor administers the document.
func (o *StaticOracle) GrantOwnership(actorID, documentID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.owners[documentID] == nil {
		o.owners[documentID] = make(map[uuid.UUID]bool)
	}
	o.owners[documentID][actorID] = true
}

// GrantPurchase records that the actor purchased the school's year.
func (o *StaticOracle) GrantPurchase(actorID, schoolID uuid.UUID, year int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.purchases[purchaseKey{actorID, schoolID, year}] = true
}

func (o *StaticOracle) HasPurchased(ctx context.Context, actorID, schoolID uuid.UUID, year int) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.purchases[purchaseKey{actorID, schoolID, year}], nil
}

func (o *StaticOracle) OwnsDocument(ctx context.Context, actorID, documentID uuid.UUID) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owners[documentID][actorID], nil
}
