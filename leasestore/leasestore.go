// Package leasestore persists DHCPv6 IdentityAssociations across restarts
// using an embedded badger database, the way std/object/storage's
// BadgerStore persists NDN Data packets: one small record per key, opened
// once at startup and updated in place as state changes.
package leasestore

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/dgraph-io/badger/v4"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/dhcp6"
)

// Store is a badger-backed table of dhcp6.IdentityAssociation records
// keyed by their prefix.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the lease database at path.
func Open(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// prefixKey builds the lookup key for an IdentityAssociation's prefix:
// the prefix length byte followed by its address bytes, so a byte-wise
// comparison orders keys by prefix the same way badger's own iterators do.
func prefixKey(p netdata.Prefix) []byte {
	addr16 := p.Addr.As16()
	key := make([]byte, 1+16)
	key[0] = p.Length
	copy(key[1:], addr16[:])
	return key
}

// Save writes ia under its prefix key, overwriting any existing record.
func (s *Store) Save(ia dhcp6.IdentityAssociation) error {
	key := prefixKey(ia.Prefix)
	val := encodeLease(ia)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Delete removes the lease record for prefix, if any.
func (s *Store) Delete(p netdata.Prefix) error {
	key := prefixKey(p)
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Load returns the stored lease for prefix, if any.
func (s *Store) Load(p netdata.Prefix) (dhcp6.IdentityAssociation, bool, error) {
	key := prefixKey(p)
	var ia dhcp6.IdentityAssociation
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, derr := decodeLease(val)
			if derr != nil {
				return derr
			}
			ia = decoded
			found = true
			return nil
		})
	})
	return ia, found, err
}

// LoadAll returns every lease record currently stored, in key order.
func (s *Store) LoadAll() ([]dhcp6.IdentityAssociation, error) {
	var out []dhcp6.IdentityAssociation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				ia, derr := decodeLease(val)
				if derr != nil {
					return derr
				}
				out = append(out, ia)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// leaseRecord is the fixed-layout on-disk encoding of an IdentityAssociation:
// prefix (1 length byte + 16 address bytes), agent RLOC16, status, the two
// lifetimes, and the installed netif address (16 bytes, all-zero when
// absent). There's no variable-length data here, so this mirrors
// netdata/wire.go's raw binary.BigEndian style rather than reaching for a
// general-purpose serialization library for a 6-field struct.
const leaseRecordLen = 1 + 16 + 2 + 1 + 4 + 4 + 16

func encodeLease(ia dhcp6.IdentityAssociation) []byte {
	out := make([]byte, leaseRecordLen)
	out[0] = ia.Prefix.Length
	addr16 := ia.Prefix.Addr.As16()
	copy(out[1:17], addr16[:])
	binary.BigEndian.PutUint16(out[17:19], uint16(ia.PrefixAgentRloc))
	out[19] = byte(ia.Status)
	binary.BigEndian.PutUint32(out[20:24], ia.PreferredLifetime)
	binary.BigEndian.PutUint32(out[24:28], ia.ValidLifetime)
	if ia.NetifAddress.IsValid() {
		netif16 := ia.NetifAddress.As16()
		copy(out[28:44], netif16[:])
	}
	return out
}

func decodeLease(b []byte) (dhcp6.IdentityAssociation, error) {
	if len(b) != leaseRecordLen {
		return dhcp6.IdentityAssociation{}, &dhcp6.ParseError{Reason: "lease record wrong length"}
	}
	var prefixAddr [16]byte
	copy(prefixAddr[:], b[1:17])

	var netifAddr [16]byte
	copy(netifAddr[:], b[28:44])

	ia := dhcp6.IdentityAssociation{
		Prefix: netdata.Prefix{
			Addr:   netip.AddrFrom16(prefixAddr),
			Length: b[0],
		},
		PrefixAgentRloc:   netdata.Rloc16(binary.BigEndian.Uint16(b[17:19])),
		Status:            dhcp6.IaStatus(b[19]),
		PreferredLifetime: binary.BigEndian.Uint32(b[20:24]),
		ValidLifetime:     binary.BigEndian.Uint32(b[24:28]),
	}
	if !bytes.Equal(netifAddr[:], make([]byte, 16)) {
		ia.NetifAddress = netip.AddrFrom16(netifAddr)
	}
	return ia, nil
}
