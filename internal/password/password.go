package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// params are the argon2id cost parameters baked into new hashes. Old
// hashes carry their own parameters, so these can be raised safely.
type params struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

var defaultParams = params{
	memory:  64 * 1024,
	time:    3,
	threads: 2,
	saltLen: 16,
	keyLen:  32,
}

var errMalformedHash = errors.New("malformed password hash")

// Hash derives an argon2id hash and encodes it in the standard
// $argon2id$v=..$m=..,t=..,p=..$salt$key format.
func Hash(plain string) (string, error) {
	p := defaultParams

	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, p.keyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
	return encoded, nil
}

// Verify reports whether plain matches the encoded hash. The comparison
// is constant-time; a malformed hash is an error, not a mismatch.
func Verify(plain, encoded string) (bool, error) {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func decode(encoded string) (params, []byte, []byte, error) {
	var p params
	var version int
	var saltB64, keyB64 string

	n, err := fmt.Sscanf(encoded, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &p.memory, &p.time, &p.threads, &saltB64)
	if err != nil || n != 5 || version != argon2.Version {
		return params{}, nil, nil, errMalformedHash
	}

	// Sscanf's %s stops at whitespace, not '$'; split the tail by hand.
	for i := 0; i < len(saltB64); i++ {
		if saltB64[i] == '$' {
			keyB64 = saltB64[i+1:]
			saltB64 = saltB64[:i]
			break
		}
	}
	if keyB64 == "" {
		return params{}, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return params{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(keyB64)
	if err != nil {
		return params{}, nil, nil, errMalformedHash
	}
	return p, salt, key, nil
}
