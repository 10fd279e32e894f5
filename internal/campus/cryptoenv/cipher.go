// File: internal/campus/cryptoenv/cipher.go

// Package cryptoenv implements the campus platform's bespoke cryptographic
// envelope: three independent symmetric transforms plus a keyed digest, each
// with its own fixed key material. The ciphers are deliberately kept as
// separate functions with separate constants; the platform validates the
// exact byte layout of each one, so they must not be unified behind a shared
// helper that could blur the distinct keys, modes, and padding rules.
package cryptoenv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
)

// Platform-owned key material. Not user-configurable; changing any of these
// breaks interoperability with the live service.
const (
	// bodyKey encrypts the JSON submission payload (AES-128-CBC).
	bodyKey = "ytUQ7l2ZZu8mLvJZ"
	// extensionKey encrypts the device-extension header (single DES, CBC).
	extensionKey = "b3L26XNL"
	// passwordAlphabet is the restricted character set the login page's own
	// JavaScript draws random prefix and IV characters from. The reduced
	// entropy is observed platform behavior and must be reproduced, not
	// "fixed": the server never sees the IV, but the traffic shape matters.
	passwordAlphabet = "ABCDEFGHJKMNPQRSTWXYZabcdefhijkmnprstwxyz2345678"
	// passwordPrefixLen is the number of random characters prepended to the
	// plaintext password before encryption.
	passwordPrefixLen = 64
)

// Fixed IVs for the body and extension ciphers, as sent by the mobile app.
var (
	bodyIV      = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	extensionIV = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
)

// randomChars returns n characters drawn from the restricted password
// alphabet. math/rand is intentional: the platform's own client uses
// non-cryptographic randomness here and the IV is discarded after use.
func randomChars(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = passwordAlphabet[rand.Intn(len(passwordAlphabet))]
	}
	return out
}

// pkcs7Pad appends PKCS#7 padding up to blockSize. A full extra block is
// added when the input is already aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	if padLen == 0 {
		padLen = blockSize
	}
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// EncryptPassword encrypts a plaintext password with the per-login salt
// scraped from the CAS page.
//
// The scheme mirrors the login page's JavaScript exactly: 64 random alphabet
// characters are prepended to the password, the whole string is PKCS#7-padded
// to the AES block size and encrypted with AES-128-CBC under the salt bytes,
// using a fresh 16-character alphabet-restricted IV. The IV is not
// transmitted; the server derives it out of band, so dropping it after
// encryption is correct.
func EncryptPassword(password, salt string) (string, error) {
	block, err := aes.NewCipher([]byte(salt))
	if err != nil {
		return "", fmt.Errorf("password cipher: invalid salt key: %w", err)
	}

	plaintext := append(randomChars(passwordPrefixLen), []byte(password)...)
	padded := pkcs7Pad(plaintext, aes.BlockSize)

	iv := randomChars(aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptBody encrypts the JSON-serialized submission payload into the
// bodyString field: AES-128-CBC under the fixed body key and IV, standard
// PKCS#7 padding, base64 output.
func EncryptBody(payload []byte) (string, error) {
	block, err := aes.NewCipher([]byte(bodyKey))
	if err != nil {
		return "", fmt.Errorf("body cipher: %w", err)
	}

	padded := pkcs7Pad(payload, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, bodyIV).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptExtension encrypts the JSON-serialized device-extension envelope
// carried in the Cpdaily-Extension request header: single-DES CBC under the
// fixed extension key and IV, standard PKCS#7 padding, base64 output.
func EncryptExtension(envelope []byte) (string, error) {
	block, err := des.NewCipher([]byte(extensionKey))
	if err != nil {
		return "", fmt.Errorf("extension cipher: %w", err)
	}

	padded := pkcs7Pad(envelope, des.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, extensionIV).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// SignatureInput is the ordered subset of extension fields covered by the
// keyed digest. Lat and Lon are pre-formatted strings so the caller controls
// the exact decimal representation the server sees.
type SignatureInput struct {
	AppVersion    string
	BodyString    string
	DeviceID      string
	Lat           string
	Lon           string
	Model         string
	SystemName    string
	SystemVersion string
	UserID        string
}

// Sign computes the extension signature: the documented field subset as
// ordered key=value pairs, joined with "&", with the body cipher key appended
// as a trailing secret, hashed with MD5.
//
// The platform's reference client garbles this step (it concatenates an
// unrelated mapping), so the documented field list below is the intended
// contract; TestSign_PinnedSample pins the exact digest so any future
// "correction" is visible in review.
func Sign(in SignatureInput) string {
	pairs := []string{
		"appVersion=" + in.AppVersion,
		"bodyString=" + in.BodyString,
		"deviceId=" + in.DeviceID,
		"lat=" + in.Lat,
		"lon=" + in.Lon,
		"model=" + in.Model,
		"systemName=" + in.SystemName,
		"systemVersion=" + in.SystemVersion,
		"userId=" + in.UserID,
		bodyKey,
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}
