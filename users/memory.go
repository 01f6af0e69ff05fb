package users

import (
	"context"
	"fmt"
	"sync"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// MemoryDirectory keeps accounts in process memory.
type MemoryDirectory struct {
	mu         sync.RWMutex
	byID       map[string]*User
	byUsername map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       map[string]*User{},
		byUsername: map[string]string{},
	}
}

func (d *MemoryDirectory) CreateUser(_ context.Context, n NewUser) (econtact.UserRecord, error) {
	u, err := n.build()
	if err != nil {
		return econtact.UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.byUsername[u.Username]; taken {
		return econtact.UserRecord{}, fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
	}
	d.byID[u.ID] = u
	d.byUsername[u.Username] = u.ID
	return u.toRecord(), nil
}

func (d *MemoryDirectory) SetActive(_ context.Context, username string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byUsername[normalize(username)]
	if !ok {
		return econtact.ErrUserNotFound
	}
	d.byID[id].Active = active
	return nil
}

func (d *MemoryDirectory) GetUserByUsername(_ context.Context, username string) (econtact.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUsername[normalize(username)]
	if !ok {
		return econtact.UserRecord{}, econtact.ErrUserNotFound
	}
	return d.byID[id].toRecord(), nil
}

func (d *MemoryDirectory) GetUserByID(_ context.Context, userID string) (econtact.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[userID]
	if !ok {
		return econtact.UserRecord{}, econtact.ErrUserNotFound
	}
	return u.toRecord(), nil
}
