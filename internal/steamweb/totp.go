package steamweb

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"time"
)

// generateGuardCode computes a Steam Guard mobile authenticator code from a
// base64 shared_secret, the same HMAC-based algorithm Steamauto-style bots
// use for unattended login.
func generateGuardCode(sharedSecret string, t time.Time) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", err
	}
	timeStep := uint64(t.Unix() / 30)
	var b [8]byte
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(timeStep & 0xFF)
		timeStep >>= 8
	}
	h := hmacSHA1(secret, b[:])
	offset := h[len(h)-1] & 0x0F
	code := (uint32(h[offset])&0x7F)<<24 | (uint32(h[offset+1])&0xFF)<<16 | (uint32(h[offset+2])&0xFF)<<8 | (uint32(h[offset+3]) & 0xFF)
	const chars = "23456789BCDFGHJKMNPQRTVWXY"
	out := make([]byte, 5)
	for i := 0; i < 5; i++ {
		out[i] = chars[code%uint32(len(chars))]
		code /= uint32(len(chars))
	}
	return string(out), nil
}

// confirmationKey computes the HMAC-SHA1 signature the mobile confirmation
// API expects for a given tag (e.g. "conf", "allow", "cancel"), keyed by
// identity_secret.
func confirmationKey(identitySecret string, t time.Time, tag string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(identitySecret)
	if err != nil {
		return "", err
	}
	data := append(encodeInt64(t.Unix()), []byte(tag)...)
	h := hmacSHA1(secret, data)
	return base64.StdEncoding.EncodeToString(h), nil
}

func encodeInt64(v int64) []byte {
	var b [8]byte
	u := uint64(v)
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(u & 0xFF)
		u >>= 8
	}
	return b[:]
}

func hmacSHA1(key, data []byte) []byte {
	const blocksize = 64
	if len(key) > blocksize {
		h := sha1.Sum(key)
		key = h[:]
	}
	if len(key) < blocksize {
		key = append(key, bytes.Repeat([]byte{0}, blocksize-len(key))...)
	}
	okey := make([]byte, blocksize)
	ikey := make([]byte, blocksize)
	for i := 0; i < blocksize; i++ {
		okey[i] = key[i] ^ 0x5c
		ikey[i] = key[i] ^ 0x36
	}
	inner := sha1.New()
	inner.Write(ikey)
	inner.Write(data)
	innerSum := inner.Sum(nil)
	outer := sha1.New()
	outer.Write(okey)
	outer.Write(innerSum)
	return outer.Sum(nil)
}
