package manager

// CheckUnavailableForTest runs one presence check without waiting for the
// periodic schedule.
func (m *Manager) CheckUnavailableForTest() {
	m.checkUnavailable()
}
