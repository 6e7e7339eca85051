package db

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"accounts/internal/constants"
)

const (
	accountIDPrefix = "usr"
	resetIDPrefix   = "prt"
)

func GenerateID(prefix string) (string, error) {
	b := make([]byte, constants.IDRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

// validID reports whether id has the shape GenerateID produces for prefix.
func validID(prefix, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok || len(rest) != constants.IDRandomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil && strings.ToLower(rest) == rest
}
