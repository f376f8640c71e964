package service

import (
	"strings"
	"testing"

	"github.com/soundrift/soundrift/internal/invite/domain"
)

func TestGenerateCodeStaysInAlphabet(t *testing.T) {
	for i := 0; i < 10000; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if len(code) != domain.CodeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(domain.CodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}
