package clip

import "sync"

// Memory is an in-process clipboard. It backs headless hosts and tests.
type Memory struct {
	mu      sync.Mutex
	content string
	writes  int
	readErr error
	wrErr   error
}

// NewMemory returns a Memory backend holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{content: initial}
}

func (m *Memory) Name() string { return "memory (headless)" }

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.content, nil
}

func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wrErr != nil {
		return m.wrErr
	}
	m.content = text
	m.writes++
	return nil
}

func (m *Memory) Close() {}

// Set replaces the content as a user copy would, without counting a write.
func (m *Memory) Set(text string) {
	m.mu.Lock()
	m.content = text
	m.mu.Unlock()
}

// Writes returns how many times Write succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailReads makes subsequent reads return err; nil restores normal reads.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// FailWrites makes subsequent writes return err; nil restores normal writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.wrErr = err
	m.mu.Unlock()
}
