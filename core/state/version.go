package state

import (
	"errors"
	"fmt"
)

// SchemaVersion tags the current persisted state layout. Schema evolution is
// additive-only: every released version keeps the meaning of the keys written
// by its predecessors.
const SchemaVersion uint64 = 1

// ErrSchemaDowngrade indicates the stored state was written by a newer build.
var ErrSchemaDowngrade = errors.New("state: stored schema newer than binary")

// Migration upgrades state from Version-1 to Version. Migrations run in order
// during EnsureSchema and must only add keys, never reinterpret existing ones.
type Migration struct {
	Version uint64
	Apply   func(m *Manager) error
}

// migrations holds the ordered upgrade steps. Version 1 is the genesis layout
// and needs no migration body.
var migrations []Migration

// StoredSchemaVersion returns the persisted schema tag, if any.
func (m *Manager) StoredSchemaVersion() (uint64, bool, error) {
	var version uint64
	ok, err := m.KVGet(schemaVersionKey, &version)
	if err != nil {
		return 0, false, err
	}
	return version, ok, nil
}

// EnsureSchema verifies the persisted schema tag, applies any pending additive
// migrations, and stamps the current version. The returned flag reports
// whether the state was freshly initialised.
func (m *Manager) EnsureSchema() (bool, error) {
	if m == nil {
		return false, fmt.Errorf("state manager not initialised")
	}
	stored, ok, err := m.StoredSchemaVersion()
	if err != nil {
		return false, err
	}
	if !ok {
		if err := m.KVPut(schemaVersionKey, SchemaVersion); err != nil {
			return false, err
		}
		m.Commit()
		return true, nil
	}
	if stored > SchemaVersion {
		return false, fmt.Errorf("%w: stored=%d supported=%d", ErrSchemaDowngrade, stored, SchemaVersion)
	}
	for _, migration := range migrations {
		if migration.Version <= stored {
			continue
		}
		snap := m.Snapshot()
		if err := migration.Apply(m); err != nil {
			if revertErr := m.RevertToSnapshot(snap); revertErr != nil {
				return false, fmt.Errorf("state: migration %d failed (%v) and revert failed: %w", migration.Version, err, revertErr)
			}
			return false, fmt.Errorf("state: migration %d: %w", migration.Version, err)
		}
		if err := m.KVPut(schemaVersionKey, migration.Version); err != nil {
			return false, err
		}
	}
	if stored < SchemaVersion {
		if err := m.KVPut(schemaVersionKey, SchemaVersion); err != nil {
			return false, err
		}
	}
	m.Commit()
	return false, nil
}
