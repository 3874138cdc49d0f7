package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	minPasswordLen = 8
	symbols        = "!@#$%&*"
	upperLetters   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerLetters   = "abcdefghijkmnopqrstuvwxyz"
	digits         = "23456789"
)

// GenerateOwnerPassword returns a password of length n (at least 8) with at
// least one uppercase letter, lowercase letter, digit and symbol. Ambiguous
// characters (I, l, O, 0, 1) are left out since owners type it into a chat.
// Do not log the returned string.
func GenerateOwnerPassword(n int) (string, error) {
	if n < minPasswordLen {
		n = minPasswordLen
	}
	classes := []string{upperLetters, lowerLetters, digits, symbols}
	all := upperLetters + lowerLetters + digits + symbols

	out := make([]byte, n)
	for i := range out {
		set := all
		if i < len(classes) {
			set = classes[i]
		}
		k, err := randInt(len(set))
		if err != nil {
			return "", err
		}
		out[i] = set[k]
	}
	// Fisher-Yates so the guaranteed classes are not always in front.
	for i := n - 1; i >= 1; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", fmt.Errorf("shuffle: %w", err)
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
