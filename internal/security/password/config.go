package password

import "fmt"

// Config selects and tunes the password hashing algorithm
type Config struct {
	Algorithm  Algorithm `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost int       `env:"BCRYPT_COST" envDefault:"10"`
	Argon2     Argon2idParams
}

// DefaultConfig returns bcrypt with cost 10
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2idParams(),
	}
}

func (c Config) validate() error {
	switch c.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Algorithm)
	}
	if c.Argon2.SaltLength < 8 || c.Argon2.SaltLength > 64 {
		return fmt.Errorf("argon2 salt length out of range [8..64]: %d", c.Argon2.SaltLength)
	}
	if c.Argon2.KeyLength < 16 || c.Argon2.KeyLength > 128 {
		return fmt.Errorf("argon2 key length out of range [16..128]: %d", c.Argon2.KeyLength)
	}
	if c.Argon2.MemoryKiB == 0 || c.Argon2.Iterations == 0 || c.Argon2.Parallelism == 0 {
		return fmt.Errorf("argon2 parameters must be positive")
	}
	return nil
}
