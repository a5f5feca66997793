package ethsig_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Tonic56/coin-watchlist/lib/ethsig"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const message = "Sign in to the watchlist.\nNonce: 8f1c2a"

func sign(t *testing.T, msg string, walletStyle bool) (address, signature string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if walletStyle {
		sig[crypto.RecoveryIDOffset] += 27
	}

	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestVerify(t *testing.T) {
	t.Run("wallet_style_recovery_id", func(t *testing.T) {
		address, signature := sign(t, message, true)

		ok, err := ethsig.Verify(address, message, signature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Errorf("Expected signature to verify")
		}
	})

	t.Run("raw_recovery_id", func(t *testing.T) {
		address, signature := sign(t, message, false)

		ok, err := ethsig.Verify(address, message, signature)
		if err != nil || !ok {
			t.Errorf("Expected signature to verify, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("address_case_is_ignored", func(t *testing.T) {
		address, signature := sign(t, message, true)

		ok, err := ethsig.Verify(strings.ToLower(address), message, signature)
		if err != nil || !ok {
			t.Errorf("Expected lowercase address to verify, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("different_message", func(t *testing.T) {
		address, signature := sign(t, message, true)

		ok, err := ethsig.Verify(address, message+"!", signature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("Expected verification to fail for a different message")
		}
	})

	t.Run("different_signer", func(t *testing.T) {
		address, _ := sign(t, message, true)
		_, otherSignature := sign(t, message, true)

		ok, err := ethsig.Verify(address, message, otherSignature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("Expected verification to fail for another signer")
		}
	})
}

func TestRecoverAddressMalformed(t *testing.T) {
	cases := map[string]string{
		"not_hex":      "0xzz",
		"no_prefix":    "abcdef",
		"too_short":    "0xdeadbeef",
		"bad_recovery": "0x" + strings.Repeat("11", 64) + "05",
	}

	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ethsig.RecoverAddress(message, signature)
			if !errors.Is(err, ethsig.ErrMalformedSignature) {
				t.Errorf("Expected ErrMalformedSignature, got %v", err)
			}
		})
	}
}
