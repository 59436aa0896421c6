package state

// HasRole reports whether the account holds the named role. Lookup failures
// deny by default.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if m == nil || role == "" || len(addr) == 0 {
		return false
	}
	var granted bool
	ok, err := m.KVGet(roleKey(role, addr), &granted)
	if err != nil || !ok {
		return false
	}
	return granted
}

// GrantRole records a (role, account) capability grant. Grants are additive;
// re-granting an existing role is a no-op.
func (m *Manager) GrantRole(role string, addr []byte) error {
	return m.KVPut(roleKey(role, addr), true)
}

// RevokeRole removes a previously granted capability.
func (m *Manager) RevokeRole(role string, addr []byte) error {
	return m.KVDelete(roleKey(role, addr))
}

// IsPaused reports the global pause switch.
func (m *Manager) IsPaused() bool {
	if m == nil {
		return false
	}
	var paused bool
	ok, err := m.KVGet(pausedKey, &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}

// SetPaused flips the global pause switch.
func (m *Manager) SetPaused(paused bool) error {
	return m.KVPut(pausedKey, paused)
}
