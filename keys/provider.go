package keys

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Provider supplies or lazily creates long-term identity key pairs and
// pre-key collections, and owns their persistence. EnsureIdentity is
// idempotent: it generates on first call and returns the existing pair
// thereafter.
type Provider interface {
	EnsureIdentity(kind IdentityKind) (*IdentityKeyPair, error)
	GeneratePreKeys(kind IdentityKind) (*PreKeyCollection, error)
}

// MemoryProvider keeps identities for the lifetime of the process. Callers
// that persist key material across installs wrap their own store in the
// Provider interface instead.
type MemoryProvider struct {
	mu         sync.Mutex
	identities map[IdentityKind]*IdentityKeyPair
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		identities: make(map[IdentityKind]*IdentityKeyPair),
	}
}

func (p *MemoryProvider) EnsureIdentity(kind IdentityKind) (*IdentityKeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if kp, ok := p.identities[kind]; ok {
		return kp, nil
	}
	kp, err := GenerateIdentityKeyPair()
	if err != nil {
		return nil, err
	}
	log.Debugf("[registration] generated %s identity key pair", kind)
	p.identities[kind] = kp
	return kp, nil
}

func (p *MemoryProvider) GeneratePreKeys(kind IdentityKind) (*PreKeyCollection, error) {
	identity, err := p.EnsureIdentity(kind)
	if err != nil {
		return nil, err
	}
	return GeneratePreKeyCollection(identity)
}
