package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(uint256 chainId,address verifyingContract)
	safeDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(uint256 chainId,address verifyingContract)"),
	)

	// SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)
	safeTxTypeHash = ethcrypto.Keccak256(
		[]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"),
	)
)

// ErrSignerDestroyed is returned when signing after Destroy.
var ErrSignerDestroyed = errors.New("crypto/signer: signer destroyed")

// SafeOperation is the Safe execution mode.
type SafeOperation uint8

const (
	SafeOperationCall         SafeOperation = 0
	SafeOperationDelegateCall SafeOperation = 1
)

// SafeTx is a Gnosis Safe transaction as hashed for owner signatures. Nil
// numeric fields encode as zero.
type SafeTx struct {
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      SafeOperation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          *big.Int
}

// Signer signs Safe transactions for the wallet owner. The private key is
// sealed in a memguard enclave and only opened for the duration of a
// signature.
type Signer struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
	address common.Address
	chainID int64
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID (137 for Polygon mainnet, 80002 for Amoy testnet).
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	// NewEnclave wipes the slice it is given.
	enclave := memguard.NewEnclave(ethcrypto.FromECDSA(pk))
	if enclave == nil {
		return nil, errors.New("crypto/signer: empty private key")
	}

	return &Signer{
		enclave: enclave,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer builds domain separators for.
func (s *Signer) ChainID() int64 {
	return s.chainID
}

// SafeTxHash returns the EIP-712 digest of tx for the Safe at safe.
func (s *Signer) SafeTxHash(safe common.Address, tx SafeTx) common.Hash {
	domainSep := ethcrypto.Keccak256(
		concatBytes(
			safeDomainTypeHash,
			bigIntTo32Bytes(big.NewInt(s.chainID)),
			common.LeftPadBytes(safe.Bytes(), 32),
		),
	)
	return common.BytesToHash(eip712Hash(domainSep, safeTxStructHash(tx)))
}

// SignSafeTx signs the Safe transaction hash as a personal message and
// returns the packed r || s || v signature in the Safe eth_sign form
// (v in {31,32}).
func (s *Signer) SignSafeTx(safe common.Address, tx SafeTx) (string, error) {
	hash := s.SafeTxHash(safe, tx)
	sig, err := s.signDigest(accounts.TextHash(hash.Bytes()))
	if err != nil {
		return "", err
	}
	sig[64] = safeSignatureV(sig[64])
	return "0x" + hex.EncodeToString(sig), nil
}

// Destroy releases the sealed key. Further signing fails.
func (s *Signer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// signDigest opens the enclave, signs a 32-byte digest with secp256k1 and
// returns r || s || v with v in {0,1}.
func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil {
		return nil, ErrSignerDestroyed
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: opening enclave: %w", err)
	}
	pk, err := ethcrypto.ToECDSA(buf.Bytes())
	buf.Destroy()
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: parsing key: %w", err)
	}

	sig, err := ethcrypto.Sign(digest, pk)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signing: %w", err)
	}
	return sig, nil
}

// safeSignatureV maps a recovery byte to the Safe eth_sign range, which
// marks the signature as made over the personal-message hash.
func safeSignatureV(v byte) byte {
	switch v {
	case 0, 1:
		return v + 31
	case 27, 28:
		return v + 4
	}
	return v
}

func safeTxStructHash(tx SafeTx) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			safeTxTypeHash,
			common.LeftPadBytes(tx.To.Bytes(), 32),
			bigIntTo32Bytes(orZero(tx.Value)),
			ethcrypto.Keccak256(tx.Data),
			bigIntTo32Bytes(big.NewInt(int64(tx.Operation))),
			bigIntTo32Bytes(orZero(tx.SafeTxGas)),
			bigIntTo32Bytes(orZero(tx.BaseGas)),
			bigIntTo32Bytes(orZero(tx.GasPrice)),
			common.LeftPadBytes(tx.GasToken.Bytes(), 32),
			common.LeftPadBytes(tx.RefundReceiver.Bytes(), 32),
			bigIntTo32Bytes(orZero(tx.Nonce)),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
