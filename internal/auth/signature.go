// Package auth implements caller authorization for privileged market
// operations: secp256k1 signature verification for production and a static
// allow-list for development.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/soromarket/marketd/internal/domain"
)

// SignatureAuthorizer implements domain.Authorizer by recovering the signer
// address from a secp256k1 signature over the Ethereum signed-message digest
// of the payload and comparing it to the claimed account.
type SignatureAuthorizer struct{}

// NewSignatureAuthorizer creates a SignatureAuthorizer.
func NewSignatureAuthorizer() *SignatureAuthorizer {
	return &SignatureAuthorizer{}
}

// Verify returns nil when sig is a valid 65-byte (r || s || v) signature by
// account over payload, domain.ErrAuthDenied otherwise.
func (a *SignatureAuthorizer) Verify(ctx context.Context, account string, payload, sig []byte) error {
	if len(sig) != 65 {
		return fmt.Errorf("auth: signature length %d: %w", len(sig), domain.ErrAuthDenied)
	}

	// Accept both v in {27,28} and the raw {0,1} recovery id.
	recSig := make([]byte, 65)
	copy(recSig, sig)
	if recSig[64] >= 27 {
		recSig[64] -= 27
	}

	digest := signedMessageDigest(payload)
	pubkey, err := ethcrypto.SigToPub(digest, recSig)
	if err != nil {
		return fmt.Errorf("auth: recover signer: %w", domain.ErrAuthDenied)
	}

	recovered := ethcrypto.PubkeyToAddress(*pubkey)
	claimed := common.HexToAddress(account)
	if !bytes.Equal(recovered.Bytes(), claimed.Bytes()) {
		return fmt.Errorf("auth: signer %s is not %s: %w", recovered.Hex(), account, domain.ErrAuthDenied)
	}
	return nil
}

// signedMessageDigest computes the EIP-191 personal-message digest:
//
//	keccak256("\x19Ethereum Signed Message:\n" || len(payload) || payload)
func signedMessageDigest(payload []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(payload))
	return ethcrypto.Keccak256([]byte(prefix), payload)
}

// StaticAuthorizer implements domain.Authorizer with a fixed set of trusted
// accounts and no cryptography. Development mode only.
type StaticAuthorizer struct {
	accounts map[string]struct{}
}

// NewStaticAuthorizer creates a StaticAuthorizer trusting the given accounts.
// An empty list trusts every caller.
func NewStaticAuthorizer(accounts []string) *StaticAuthorizer {
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		set[strings.ToLower(a)] = struct{}{}
	}
	return &StaticAuthorizer{accounts: set}
}

// Verify trusts any account in the configured set regardless of sig.
func (a *StaticAuthorizer) Verify(ctx context.Context, account string, payload, sig []byte) error {
	if len(a.accounts) == 0 {
		return nil
	}
	if _, ok := a.accounts[strings.ToLower(account)]; !ok {
		return fmt.Errorf("auth: account %s not trusted: %w", account, domain.ErrAuthDenied)
	}
	return nil
}

var (
	_ domain.Authorizer = (*SignatureAuthorizer)(nil)
	_ domain.Authorizer = (*StaticAuthorizer)(nil)
)
