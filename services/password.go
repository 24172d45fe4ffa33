package services

import (
	"github.com/alexedwards/argon2id"
)

var passwordParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// MinPasswordLength is the shortest password accepted on create or reset.
const MinPasswordLength = 8

// HashPassword returns an Argon2id hash that embeds its own parameters.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, passwordParams)
}
