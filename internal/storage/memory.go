package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process development.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]UserRecord
	vaults   map[string]Vault
	keys     map[string]VaultKeyRecord // vaultID + "\x00" + username
	secrets  map[string]Secret         // vaultID + "\x00" + name
	versions map[string][]SecretVersion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[string]UserRecord{},
		vaults:   map[string]Vault{},
		keys:     map[string]VaultKeyRecord{},
		secrets:  map[string]Secret{},
		versions: map[string][]SecretVersion{},
	}
}

func pairKey(a, b string) string { return a + "\x00" + b }

func (m *MemoryStore) AddUser(_ context.Context, u UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return ErrExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, username string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UpdateUserKeys(_ context.Context, u UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.Username]
	if !ok {
		return ErrNotFound
	}
	u.CreatedAt = old.CreatedAt
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) ReplaceCredentials(_ context.Context, u UserRecord, keys []VaultKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.Username]
	if !ok {
		return ErrNotFound
	}
	for _, k := range keys {
		if _, ok := m.vaults[k.VaultID]; !ok {
			return ErrNotFound
		}
	}
	u.CreatedAt = old.CreatedAt
	m.users[u.Username] = u
	for _, k := range keys {
		m.keys[pairKey(k.VaultID, k.Username)] = k
	}
	return nil
}

func (m *MemoryStore) CreateVault(_ context.Context, v Vault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vaults[v.ID]; ok {
		return ErrExists
	}
	m.vaults[v.ID] = v
	return nil
}

func (m *MemoryStore) GetVault(_ context.Context, id string) (Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vaults[id]
	if !ok {
		return Vault{}, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) ListVaults(_ context.Context, username string) ([]Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Vault
	for _, rec := range m.keys {
		if rec.Username == username {
			if v, ok := m.vaults[rec.VaultID]; ok {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) PutVaultKey(_ context.Context, rec VaultKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vaults[rec.VaultID]; !ok {
		return ErrNotFound
	}
	m.keys[pairKey(rec.VaultID, rec.Username)] = rec
	return nil
}

func (m *MemoryStore) GetVaultKey(_ context.Context, vaultID, username string) (VaultKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.keys[pairKey(vaultID, username)]
	if !ok {
		return VaultKeyRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListVaultKeys(_ context.Context, username string) ([]VaultKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VaultKeyRecord
	for _, rec := range m.keys {
		if rec.Username == username {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VaultID < out[j].VaultID })
	return out, nil
}

func (m *MemoryStore) DeleteVaultKey(_ context.Context, vaultID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(vaultID, username)
	if _, ok := m.keys[k]; !ok {
		return ErrNotFound
	}
	delete(m.keys, k)
	return nil
}

func (m *MemoryStore) PutSecret(_ context.Context, s Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(s.VaultID, s.Name)
	cur, ok := m.secrets[k]
	switch {
	case !ok && s.Version != 1:
		return ErrVersionConflict
	case ok && s.Version != cur.Version+1:
		return ErrVersionConflict
	}
	m.secrets[k] = s
	m.versions[k] = append(m.versions[k], SecretVersion{
		VaultID:   s.VaultID,
		Name:      s.Name,
		Version:   s.Version,
		Envelope:  s.Envelope,
		Author:    s.UpdatedBy,
		CreatedAt: s.UpdatedAt,
	})
	return nil
}

func (m *MemoryStore) GetSecret(_ context.Context, vaultID, name string) (Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[pairKey(vaultID, name)]
	if !ok {
		return Secret{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListSecrets(_ context.Context, vaultID string) ([]Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Secret
	for _, s := range m.secrets {
		if s.VaultID == vaultID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) ListSecretVersions(_ context.Context, vaultID, name string) ([]SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.versions[pairKey(vaultID, name)]
	if len(vs) == 0 {
		return nil, ErrNotFound
	}
	return append([]SecretVersion(nil), vs...), nil
}

func (m *MemoryStore) GetSecretVersion(_ context.Context, vaultID, name string, version int) (SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[pairKey(vaultID, name)] {
		if v.Version == version {
			return v, nil
		}
	}
	return SecretVersion{}, ErrNotFound
}
