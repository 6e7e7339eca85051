package constants

import "time"

const (
	// IDRandomBytes is the number of random bytes behind generated sqlite IDs.
	IDRandomBytes = 12

	ResetTokenBytes = 32

	DefaultTokenTTL      = 7 * 24 * time.Hour
	DefaultResetTokenTTL = time.Hour
	DefaultBcryptCost    = 10

	DefaultUploadMaxBytes = 5 << 20

	AccountListDefaultLimit = 20
	AccountListMaxLimit     = 100
)
