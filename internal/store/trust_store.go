package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
)

const (
	metadataBucket = "metadata"
	trustedBucket  = "trusted"
	versionKey     = "version"
	trustVersion   = 0
)

// TrustDB is a bbolt backed TrustStore. Records are CBOR encoded and kept in
// one sub-bucket per local permanent key, keyed by the peer's key.
type TrustDB struct {
	sync.Mutex

	db  *bolt.DB
	now func() time.Time
}

// OpenTrustDB opens or creates the database at path.
func OpenTrustDB(path string) (*TrustDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open trust db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trustedBucket)); err != nil {
			return err
		}
		if v := meta.Get([]byte(versionKey)); v != nil {
			if len(v) != 1 || v[0] != trustVersion {
				return fmt.Errorf("store: incompatible trust db version %v", v)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{trustVersion})
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &TrustDB{db: db, now: time.Now}, nil
}

// Close flushes and closes the database.
func (d *TrustDB) Close() error {
	if err := d.db.Sync(); err != nil {
		d.db.Close()
		return err
	}
	return d.db.Close()
}

// Trust records peer for local. An existing record keeps its pairing time
// and gets its last seen time refreshed.
func (d *TrustDB) Trust(local crypto.PublicKey, peer domain.TrustedPeer) error {
	d.Lock()
	defer d.Unlock()

	now := d.now().Unix()
	return d.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket([]byte(trustedBucket)).CreateBucketIfNotExists(local.Slice())
		if err != nil {
			return err
		}
		if raw := bkt.Get(peer.PublicKey[:]); raw != nil {
			var old domain.TrustedPeer
			if err := cbor.Unmarshal(raw, &old); err != nil {
				return fmt.Errorf("store: corrupt trust record: %w", err)
			}
			peer.PairedUnix = old.PairedUnix
		}
		if peer.PairedUnix == 0 {
			peer.PairedUnix = now
		}
		peer.LastSeenUnix = now
		raw, err := cbor.Marshal(peer)
		if err != nil {
			return err
		}
		return bkt.Put(peer.PublicKey[:], raw)
	})
}

// Lookup returns the record for peer.
func (d *TrustDB) Lookup(local, peer crypto.PublicKey) (domain.TrustedPeer, bool, error) {
	var (
		out   domain.TrustedPeer
		found bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(trustedBucket)).Bucket(local.Slice())
		if bkt == nil {
			return nil
		}
		raw := bkt.Get(peer.Slice())
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &out)
	})
	return out, found, err
}

// List returns every peer trusted by local.
func (d *TrustDB) List(local crypto.PublicKey) ([]domain.TrustedPeer, error) {
	var out []domain.TrustedPeer
	err := d.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(trustedBucket)).Bucket(local.Slice())
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(_, v []byte) error {
			var p domain.TrustedPeer
			if err := cbor.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("store: corrupt trust record: %w", err)
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// Latest returns the most recently seen peer of the given role.
func (d *TrustDB) Latest(local crypto.PublicKey, role domain.Role) (domain.TrustedPeer, bool, error) {
	peers, err := d.List(local)
	if err != nil {
		return domain.TrustedPeer{}, false, err
	}
	var (
		best  domain.TrustedPeer
		found bool
	)
	for _, p := range peers {
		if p.PeerRole != role {
			continue
		}
		if !found || p.LastSeenUnix > best.LastSeenUnix {
			best, found = p, true
		}
	}
	return best, found, nil
}

// Forget removes peer. Forgetting an unknown peer is not an error.
func (d *TrustDB) Forget(local, peer crypto.PublicKey) error {
	d.Lock()
	defer d.Unlock()

	return d.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(trustedBucket)).Bucket(local.Slice())
		if bkt == nil {
			return nil
		}
		return bkt.Delete(peer.Slice())
	})
}

var _ domain.TrustStore = (*TrustDB)(nil)
