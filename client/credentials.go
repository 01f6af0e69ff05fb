package client

import (
	"context"
	"sync"
)

// Credentials is the client half of a session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// CredentialStore holds the current credentials. Set replaces both tokens
// as one unit with respect to concurrent Get calls.
type CredentialStore interface {
	Get() Credentials
	Set(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
}

// Keeper persists the refresh token across process restarts. Load returns
// an empty string when nothing is stored.
type Keeper interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, refreshToken string) error
	Clear(ctx context.Context) error
}

// Vault is the CredentialStore used by Client. The access token lives only
// in memory; the refresh token is mirrored to a Keeper.
type Vault struct {
	// writeMu serializes Set and Clear so memory and keeper agree.
	writeMu sync.Mutex
	mu      sync.RWMutex
	creds   Credentials
	keeper  Keeper
}

var _ CredentialStore = (*Vault)(nil)

// NewVault returns an empty vault. A nil keeper keeps everything in memory.
func NewVault(keeper Keeper) *Vault {
	if keeper == nil {
		keeper = NewMemoryKeeper()
	}
	return &Vault{keeper: keeper}
}

func (v *Vault) Get() Credentials {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.creds
}

// Set swaps in c and then persists its refresh token. The in-memory pair
// is updated even when persisting fails; the error is still returned.
func (v *Vault) Set(ctx context.Context, c Credentials) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.Lock()
	v.creds = c
	v.mu.Unlock()

	if c.RefreshToken == "" {
		return v.keeper.Clear(ctx)
	}
	return v.keeper.Save(ctx, c.RefreshToken)
}

func (v *Vault) Clear(ctx context.Context) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.Lock()
	v.creds = Credentials{}
	v.mu.Unlock()

	return v.keeper.Clear(ctx)
}

// Restore loads the durable refresh token into memory and returns it. The
// access token is left empty.
func (v *Vault) Restore(ctx context.Context) (string, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	token, err := v.keeper.Load(ctx)
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	v.creds = Credentials{RefreshToken: token}
	v.mu.Unlock()
	return token, nil
}

// MemoryKeeper keeps the refresh token for the life of the process.
type MemoryKeeper struct {
	mu    sync.Mutex
	token string
}

func NewMemoryKeeper() *MemoryKeeper {
	return &MemoryKeeper{}
}

func (k *MemoryKeeper) Load(context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.token, nil
}

func (k *MemoryKeeper) Save(_ context.Context, refreshToken string) error {
	k.mu.Lock()
	k.token = refreshToken
	k.mu.Unlock()
	return nil
}

func (k *MemoryKeeper) Clear(context.Context) error {
	k.mu.Lock()
	k.token = ""
	k.mu.Unlock()
	return nil
}
