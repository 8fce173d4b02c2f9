package trust

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
)

// minPrefix is the shortest fingerprint prefix Forget accepts.
const minPrefix = 4

var (
	ErrNotFound  = errors.New("trust: no peer with that fingerprint")
	ErrAmbiguous = errors.New("trust: fingerprint prefix matches several peers")
)

// Service manages trusted peers of our identity.
type Service struct {
	ids   domain.IdentityStore
	trust domain.TrustStore
}

// New returns a trust service for the identity in ids.
func New(ids domain.IdentityStore, ts domain.TrustStore) *Service {
	return &Service{ids: ids, trust: ts}
}

// List returns every trusted peer, most recently seen first.
func (s *Service) List() ([]domain.TrustedPeer, error) {
	local, err := s.ids.PublicKey()
	if err != nil {
		return nil, err
	}
	peers, err := s.trust.List(local)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(peers, func(i, j int) bool {
		return peers[i].LastSeenUnix > peers[j].LastSeenUnix
	})
	return peers, nil
}

// Latest returns the most recently seen peer that played role.
func (s *Service) Latest(role domain.Role) (domain.TrustedPeer, bool, error) {
	local, err := s.ids.PublicKey()
	if err != nil {
		return domain.TrustedPeer{}, false, err
	}
	return s.trust.Latest(local, role)
}

// Forget removes the peer whose fingerprint starts with prefix.
func (s *Service) Forget(prefix string) (domain.TrustedPeer, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < minPrefix {
		return domain.TrustedPeer{}, fmt.Errorf("trust: fingerprint prefix must have at least %d characters", minPrefix)
	}
	local, err := s.ids.PublicKey()
	if err != nil {
		return domain.TrustedPeer{}, err
	}
	peers, err := s.trust.List(local)
	if err != nil {
		return domain.TrustedPeer{}, err
	}

	var match []domain.TrustedPeer
	for _, p := range peers {
		if strings.HasPrefix(crypto.Fingerprint(p.PublicKey), prefix) {
			match = append(match, p)
		}
	}
	switch len(match) {
	case 0:
		return domain.TrustedPeer{}, ErrNotFound
	case 1:
	default:
		return domain.TrustedPeer{}, ErrAmbiguous
	}
	if err := s.trust.Forget(local, crypto.PublicKey(match[0].PublicKey)); err != nil {
		return domain.TrustedPeer{}, err
	}
	return match[0], nil
}

var _ domain.TrustService = (*Service)(nil)
