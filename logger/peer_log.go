package logger

import (
	"fmt"
	"os"
	"sync"
)

// PeerLog is the append-mode file client input is recorded in, one entry per
// line: the peer identifier immediately followed by the message. Each entry
// is written with a single write call. Safe for concurrent use.
type PeerLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// OpenPeerLog opens (creating if needed) the log file at path for appending.
//
// Parameters:
//   - path: Location of the log file
//
// Returns:
//   - The open PeerLog
//   - An error if the file could not be opened for writing
func OpenPeerLog(path string) (*PeerLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s for writing: %w", path, err)
	}

	return &PeerLog{path: path, file: file}, nil
}

// Log appends one entry.
//
// Parameters:
//   - peer: Identifier of the client, usually its IP address
//   - message: The client input
//
// Returns:
//   - An error if the log is closed or the write failed
func (l *PeerLog) Log(peer string, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("peer log %s is closed", l.path)
	}

	entry := make([]byte, 0, len(peer)+len(message)+1)
	entry = append(entry, peer...)
	entry = append(entry, message...)
	entry = append(entry, '\n')
	if _, err := l.file.Write(entry); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}

	return nil
}

// Path returns the file location.
func (l *PeerLog) Path() string {
	return l.path
}

// Close closes the file. It is safe to call multiple times.
func (l *PeerLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}
