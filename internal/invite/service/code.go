package service

import (
	"crypto/rand"

	"github.com/soundrift/soundrift/internal/invite/domain"
)

// largest multiple of len(CodeAlphabet) below 256, for rejection sampling
const codeByteLimit = byte(256 / len(domain.CodeAlphabet) * len(domain.CodeAlphabet))

// generateCode draws CodeLength characters uniformly from CodeAlphabet.
func generateCode() (string, error) {
	out := make([]byte, 0, domain.CodeLength)
	buf := make([]byte, domain.CodeLength*2)

	for len(out) < domain.CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= codeByteLimit {
				continue
			}
			out = append(out, domain.CodeAlphabet[int(b)%len(domain.CodeAlphabet)])
			if len(out) == domain.CodeLength {
				break
			}
		}
	}

	return string(out), nil
}
