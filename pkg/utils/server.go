package utils

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

const serverIDPrefix = "azpub-"

// GetPersistentServerID names the node in run summaries. An explicit override wins,
// then a previously stored id, then the hostname. A random id is stored as last resort.
func GetPersistentServerID(override, storagePath string) string {
	if override != "" {
		return override
	}

	idFile := filepath.Join(storagePath, ".server_id")
	if data, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "localhost" {
		if clean := keySafe(hostname); clean != "" {
			return serverIDPrefix + clean
		}
	}

	randomPart := make([]byte, 4)
	_, _ = rand.Read(randomPart)
	newID := serverIDPrefix + hex.EncodeToString(randomPart)

	if err := os.MkdirAll(storagePath, 0755); err == nil {
		_ = os.WriteFile(idFile, []byte(newID), 0644)
	}
	return newID
}

// keySafe drops characters that do not belong in a Valkey key segment.
func keySafe(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, s)
}
