package storage

import (
	"testing"
)

func TestMemoryProvider(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	testDatabase(t, m)
}
