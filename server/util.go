package main

import (
	"cmp"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateID returns n random bytes hex encoded
func GenerateID(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// CleanName trims name, substitutes def when nothing is left and cuts the
// result to n bytes.
func CleanName(name, def string, n int) string {
	if name = strings.TrimSpace(name); name == "" {
		name = def
	}
	if len(name) > n {
		name = name[:n]
	}
	return name
}
