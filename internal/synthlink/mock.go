package synthlink

// MockPort implements SerialPorter for testing.
type MockPort struct {
	Writes      [][]byte
	WriteErrors []error // consumed one per Write call; nil entries succeed
	ShortWrite  bool
	ResetError  error
	DrainError  error
	CloseError  error
	ResetCount  int
	DrainCount  int
	Closed      bool
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	if len(m.WriteErrors) > 0 {
		err := m.WriteErrors[0]
		m.WriteErrors = m.WriteErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	if m.ShortWrite {
		return len(p) - 1, nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.Writes = append(m.Writes, buf)
	return len(p), nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.ResetCount++
	return m.ResetError
}

func (m *MockPort) Drain() error {
	m.DrainCount++
	return m.DrainError
}

func (m *MockPort) Close() error {
	m.Closed = true
	return m.CloseError
}
