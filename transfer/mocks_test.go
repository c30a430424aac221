package transfer

import (
	"fmt"
	"sync"

	"github.com/opd-ai/ftpush/transport"
)

// mockTransport is an in-memory remote filesystem implementing
// transport.Transport, with scriptable failures for exercising the retry
// and failure paths.
type mockTransport struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  []string

	connected bool

	// failure scripting
	connectFailures int   // fail this many Connect calls before succeeding
	connectErr      error // error returned by failing Connect calls
	writeFailures   int   // fail this many WriteChunk calls before succeeding
	writeErr        error
	renameFailures  int
	renameErr       error
	corruptOnRename int // truncate the renamed file by this many bytes

	// observations
	connectCalls   int
	reconnectCalls int
	writeCalls     []writeCall
	renameCalls    []renamePair
	deleteCalls    []string
}

type writeCall struct {
	path   string
	mode   transport.WriteMode
	offset int64
	length int
}

type renamePair struct {
	from string
	to   string
}

func newMockTransport() *mockTransport {
	return &mockTransport{files: make(map[string][]byte)}
}

func (m *mockTransport) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectFailures > 0 {
		m.connectFailures--
		if m.connectErr != nil {
			return m.connectErr
		}
		return fmt.Errorf("mock connect refused")
	}
	m.connected = true
	return nil
}

func (m *mockTransport) EnsureDir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return transport.ErrNotConnected
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockTransport) WriteChunk(path string, data []byte, mode transport.WriteMode, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return transport.ErrNotConnected
	}
	m.writeCalls = append(m.writeCalls, writeCall{path: path, mode: mode, offset: offset, length: len(data)})

	if m.writeFailures > 0 {
		m.writeFailures--
		m.connected = false // simulate the session dropping with the failure
		if m.writeErr != nil {
			return m.writeErr
		}
		return fmt.Errorf("mock write failed: %w", transport.ErrNotConnected)
	}

	switch mode {
	case transport.WriteModeCreate:
		if offset != 0 {
			return fmt.Errorf("create mode with offset %d", offset)
		}
		m.files[path] = append([]byte(nil), data...)
	case transport.WriteModeAppend:
		existing := m.files[path]
		if int64(len(existing)) != offset {
			return fmt.Errorf("append at %d but partial is %d bytes", offset, len(existing))
		}
		m.files[path] = append(existing, data...)
	}
	return nil
}

func (m *mockTransport) RemoteSize(path string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, false, transport.ErrNotConnected
	}
	data, ok := m.files[path]
	if !ok {
		return 0, false, nil
	}
	return int64(len(data)), true, nil
}

func (m *mockTransport) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return transport.ErrNotConnected
	}
	m.renameCalls = append(m.renameCalls, renamePair{from: oldPath, to: newPath})

	if m.renameFailures > 0 {
		m.renameFailures--
		if m.renameErr != nil {
			return m.renameErr
		}
		return fmt.Errorf("mock rename failed")
	}

	data, ok := m.files[oldPath]
	if !ok {
		return fmt.Errorf("rename source %s missing", oldPath)
	}
	if m.corruptOnRename > 0 && m.corruptOnRename <= len(data) {
		data = data[:len(data)-m.corruptOnRename]
	}
	m.files[newPath] = data
	delete(m.files, oldPath)
	return nil
}

func (m *mockTransport) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return transport.ErrNotConnected
	}
	m.deleteCalls = append(m.deleteCalls, path)
	delete(m.files, path)
	return nil
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectCalls++
	m.connected = true
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// file returns a copy of a remote file's bytes.
func (m *mockTransport) file(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// seed places a remote file, simulating leftovers from a prior attempt.
func (m *mockTransport) seed(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
}
