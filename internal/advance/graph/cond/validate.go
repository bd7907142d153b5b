package cond

import (
	"fmt"
	"strings"
	"unicode"
)

// Validate restricts transition conditions to boolean logic over flat
// variable names. Graph definitions are configuration, not code; anything
// beyond comparisons and and/or/not belongs in a rule.
func Validate(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}

	illegalChars := []rune{'{', '}', '[', ']', ';', ':', '?', '@', '#', '$', '\\'}
	for _, ch := range illegalChars {
		if strings.ContainsRune(src, ch) {
			return fmt.Errorf("illegal character %q", ch)
		}
	}

	if strings.Contains(src, ".") {
		return fmt.Errorf("dot access is not allowed")
	}

	illegalOps := []string{"+", "-", "*", "/", "%"}
	for _, op := range illegalOps {
		if strings.Contains(src, op) {
			return fmt.Errorf("arithmetic operator %q is not allowed", op)
		}
	}

	for i := 0; i < len(src)-1; i++ {
		if src[i] == '(' {
			j := i - 1
			for j >= 0 && unicode.IsSpace(rune(src[j])) {
				j--
			}
			if j >= 0 && (unicode.IsLetter(rune(src[j])) || src[j] == '_') {
				k := j
				for k >= 0 && (unicode.IsLetter(rune(src[k])) || unicode.IsDigit(rune(src[k])) || src[k] == '_') {
					k--
				}
				ident := strings.TrimSpace(src[k+1 : j+1])
				if ident != "" && ident != "not" && ident != "and" && ident != "or" {
					return fmt.Errorf("function calls are not allowed (found %q(...))", ident)
				}
			}
		}
	}

	return nil
}
