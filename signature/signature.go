// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signature verifies signatures of the schemes accepted from oracles
// and wallets.
package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Scheme identifies how a signature was produced.
type Scheme uint8

const (
	Ed25519 Scheme = iota
	Sr25519
	Secp256k1
	Secp256k1Prefixed
	P256
	P256WithAuthenticatorData
	Ed25519Base64
	P256Base64
)

func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	case Secp256k1:
		return "secp256k1"
	case Secp256k1Prefixed:
		return "secp256k1-prefixed"
	case P256:
		return "p256"
	case P256WithAuthenticatorData:
		return "p256-webauthn"
	case Ed25519Base64:
		return "ed25519-base64"
	case P256Base64:
		return "p256-base64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Supported reports whether signatures of the scheme can be verified.
func (s Scheme) Supported() bool {
	return s <= P256Base64 && s != Sr25519
}

// Signature is a signature tagged with its scheme. AuthenticatorData is only
// set for WebAuthn signatures.
type Signature struct {
	Scheme            Scheme `serialize:"true" json:"scheme"`
	Bytes             []byte `serialize:"true" json:"bytes"`
	AuthenticatorData []byte `serialize:"true" json:"authenticatorData,omitempty"`
}

// Verifier checks a signature over a message against a public key.
type Verifier interface {
	Verify(sig Signature, message, pubKey []byte) bool
}

// Default verifies every supported scheme.
type Default struct{}

func (Default) Verify(sig Signature, message, pubKey []byte) bool {
	return Verify(sig, message, pubKey)
}

func Verify(sig Signature, message, pubKey []byte) bool {
	switch sig.Scheme {
	case Ed25519:
		return verifyEd25519(sig.Bytes, message, pubKey)
	case Ed25519Base64:
		return verifyEd25519(sig.Bytes, base64Encode(message), pubKey)
	case Secp256k1:
		return verifySecp256k1(sig.Bytes, crypto.Keccak256(message), pubKey)
	case Secp256k1Prefixed:
		return verifySecp256k1(sig.Bytes, accounts.TextHash(message), pubKey)
	case P256:
		digest := sha256.Sum256(message)
		return verifyP256(sig.Bytes, digest[:], pubKey)
	case P256Base64:
		digest := sha256.Sum256(base64Encode(message))
		return verifyP256(sig.Bytes, digest[:], pubKey)
	case P256WithAuthenticatorData:
		return verifyP256(sig.Bytes, WebAuthnDigest(sig.AuthenticatorData, message), pubKey)
	case Sr25519:
		// no sr25519 implementation is available
		return false
	default:
		return false
	}
}

func base64Encode(message []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(message)))
	base64.StdEncoding.Encode(out, message)
	return out
}

func verifyEd25519(sig, message, pubKey []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, message, sig)
}

// verifySecp256k1 accepts [R || S] or [R || S || V] signatures and compressed
// or uncompressed keys.
func verifySecp256k1(sig, digest, pubKey []byte) bool {
	switch len(sig) {
	case crypto.SignatureLength:
		sig = sig[:crypto.SignatureLength-1]
	case crypto.SignatureLength - 1:
	default:
		return false
	}
	return crypto.VerifySignature(pubKey, digest, sig)
}

// WebAuthnDigest is the digest signed by an authenticator:
// sha256(authenticatorData || sha256(message)).
func WebAuthnDigest(authData, message []byte) []byte {
	clientHash := sha256.Sum256(message)
	h := sha256.New()
	h.Write(authData)
	h.Write(clientHash[:])
	return h.Sum(nil)
}

// verifyP256 takes a 64 byte [R || S] signature and a compressed or
// uncompressed key.
func verifyP256(sig, digest, pubKey []byte) bool {
	if len(sig) != 64 {
		return false
	}
	key, ok := parseP256(pubKey)
	if !ok {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(key, digest, r, s)
}

func parseP256(pubKey []byte) (*ecdsa.PublicKey, bool) {
	curve := elliptic.P256()
	var x, y *big.Int
	switch len(pubKey) {
	case 33:
		x, y = elliptic.UnmarshalCompressed(curve, pubKey)
	case 65:
		x, y = elliptic.Unmarshal(curve, pubKey)
	default:
		return nil, false
	}
	if x == nil {
		return nil, false
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, true
}
