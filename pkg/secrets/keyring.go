package secrets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// Keyring holds named secrets for glsync.
type Keyring interface {
	// Get returns ErrNotFound for a secret that was never stored.
	Get(name string) (string, error)
	Set(name, value string) error
	// Delete returns ErrNotFound for a secret that was never stored.
	Delete(name string) error
}

// OSKeyring keeps secrets in the operating system keyring, one entry per
// secret name under Service.
type OSKeyring struct {
	Service string
}

func NewOSKeyring() OSKeyring {
	return OSKeyring{Service: KeyringService}
}

func (k OSKeyring) Get(name string) (string, error) {
	v, err := keyring.Get(k.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from keyring: %w", name, err)
	}
	return v, nil
}

func (k OSKeyring) Set(name, value string) error {
	if err := keyring.Set(k.Service, name, value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

func (k OSKeyring) Delete(name string) error {
	err := keyring.Delete(k.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting %s from keyring: %w", name, err)
	}
	return nil
}

// MemoryKeyring is a Keyring backed by a map.
type MemoryKeyring struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{entries: map[string]string{}}
}

func (k *MemoryKeyring) Get(name string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.entries[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (k *MemoryKeyring) Set(name, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[name] = value
	return nil
}

func (k *MemoryKeyring) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.entries[name]; !ok {
		return ErrNotFound
	}
	delete(k.entries, name)
	return nil
}

var (
	_ Keyring = OSKeyring{}
	_ Keyring = (*MemoryKeyring)(nil)
)
