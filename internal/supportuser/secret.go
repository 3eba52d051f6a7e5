package supportuser

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var (
	alphabetUppercase = `ABCDEFGHJKLMNPQRSTUVWXYZ`
	alphabetLowercase = `abcdefghijkmnopqrstuvwxyz`
	alphabetNumbers   = `23456789`
	alphabetSymbols   = `!@#$%^&*()-_=+`
)

// SecretLength is the length of generated secrets
const SecretLength = 24

var errSecretImpossible = errors.New("secret cannot be generated")

// GenerateSecret returns a random secret of SecretLength characters holding
// at least two characters from each alphabet.
func GenerateSecret() (string, error) {
	return generateSecret(SecretLength, 2)
}

func generateSecret(length, perClass int) (string, error) {
	classes := []string{alphabetUppercase, alphabetLowercase, alphabetNumbers, alphabetSymbols}
	if perClass*len(classes) > length {
		return "", errSecretImpossible
	}

	all := ""
	for _, c := range classes {
		all += c
	}

	secret := make([]byte, 0, length)
	for _, c := range classes {
		for i := 0; i < perClass; i++ {
			b, err := pick(c)
			if err != nil {
				return "", err
			}
			secret = append(secret, b)
		}
	}
	for len(secret) < length {
		b, err := pick(all)
		if err != nil {
			return "", err
		}
		secret = append(secret, b)
	}

	// Fisher-Yates so the guaranteed characters are not always up front.
	for i := len(secret) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		secret[i], secret[j.Int64()] = secret[j.Int64()], secret[i]
	}
	return string(secret), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
