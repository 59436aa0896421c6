package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardvault/storage"
)

// Manager layers the vault's state schema on top of a raw key-value database.
// Writes are journaled so that a failed operation can unwind every mutation it
// made; the surrounding execution model runs one operation at a time, so no
// internal locking is required.
type Manager struct {
	db      storage.Database
	journal []journalEntry
}

type journalEntry struct {
	key     []byte
	prev    []byte
	existed bool
}

// NewManager constructs a manager bound to the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVPut encodes the value with RLP and stores it under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil {
		return fmt.Errorf("state manager not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	if err := m.record(key); err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVGet decodes the stored value into out, reporting whether the key existed.
// Passing a nil out performs a bare existence check.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("state manager not initialised")
	}
	encoded, ok, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil {
		return fmt.Errorf("state manager not initialised")
	}
	if err := m.record(key); err != nil {
		return err
	}
	return m.db.Delete(key)
}

// KVAppend appends a raw entry to the RLP list stored under key.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if m == nil {
		return fmt.Errorf("state manager not initialised")
	}
	var list [][]byte
	encoded, ok, err := m.db.Get(key)
	if err != nil {
		return err
	}
	if ok {
		if err := rlp.DecodeBytes(encoded, &list); err != nil {
			return err
		}
	}
	list = append(list, append([]byte(nil), value...))
	updated, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	if err := m.record(key); err != nil {
		return err
	}
	return m.db.Put(key, updated)
}

// KVGetList decodes the RLP list stored under key into out.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if m == nil {
		return fmt.Errorf("state manager not initialised")
	}
	encoded, ok, err := m.db.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		empty, err := rlp.EncodeToBytes([][]byte{})
		if err != nil {
			return err
		}
		return rlp.DecodeBytes(empty, out)
	}
	return rlp.DecodeBytes(encoded, out)
}

func (m *Manager) record(key []byte) error {
	prev, existed, err := m.db.Get(key)
	if err != nil {
		return err
	}
	entry := journalEntry{key: append([]byte(nil), key...), existed: existed}
	if existed {
		entry.prev = append([]byte(nil), prev...)
	}
	m.journal = append(m.journal, entry)
	return nil
}

// Snapshot marks the current journal position for a later revert.
func (m *Manager) Snapshot() int {
	if m == nil {
		return 0
	}
	return len(m.journal)
}

// RevertToSnapshot unwinds every write made since the matching Snapshot call.
func (m *Manager) RevertToSnapshot(id int) error {
	if m == nil {
		return fmt.Errorf("state manager not initialised")
	}
	if id < 0 || id > len(m.journal) {
		return fmt.Errorf("state: invalid snapshot id %d", id)
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.existed {
			if err := m.db.Put(entry.key, entry.prev); err != nil {
				return err
			}
		} else {
			if err := m.db.Delete(entry.key); err != nil {
				return err
			}
		}
	}
	m.journal = m.journal[:id]
	return nil
}

// Commit discards the journal accumulated by a completed operation.
func (m *Manager) Commit() {
	if m == nil {
		return
	}
	m.journal = m.journal[:0]
}
