// Package codec builds the canonical order record and its domain-separated
// hash, and verifies maker signatures. It performs no network or storage
// access and is safe on the critical path of order creation.
package codec

import (
	"crypto/ecdsa"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const (
	eip712DomainName    = "Gallerio Marketplace"
	eip712DomainVersion = "1"
)

var (
	// domainTypeHash is the keccak256 hash of the EIP712Domain type definition.
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// orderTypeHash is the keccak256 hash of the Order type definition. The
	// order of fields is the wire contract shared with the settlement contract.
	orderTypeHash = crypto.Keccak256Hash([]byte("Order(address seller,address buyer,address assetContract,uint256 assetId,address currency,uint256 price,uint256 nonce,uint256 deadline)"))
)

var (
	ErrMalformedOrder   = errors.New("malformed order")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Kind distinguishes the two entry points sharing the Order shape: a listing
// is made and signed by the seller, an offer is made and signed by the buyer.
// Kind is store-side metadata and is not part of the hash.
type Kind string

const (
	KindListing Kind = "listing"
	KindOffer   Kind = "offer"
)

// Order is a signed, off-ledger intent to trade an asset for currency.
type Order struct {
	Seller        common.Address
	Buyer         common.Address // zero address = open listing
	AssetContract common.Address
	AssetId       *big.Int
	Currency      common.Address // zero address = native currency
	Price         *big.Int       // smallest unit
	Nonce         *big.Int       // per-maker
	Deadline      *big.Int       // unix timestamp
	Kind          Kind
}

// Maker returns the address expected to have signed the order.
func (o Order) Maker() common.Address {
	if o.Kind == KindOffer {
		return o.Buyer
	}
	return o.Seller
}

// Codec hashes and verifies orders under a fixed EIP-712 domain separator.
type Codec struct {
	domainSeparator common.Hash
}

func New(chainID *big.Int, verifyingContract common.Address) *Codec {
	sep := crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(eip712DomainName)),
		crypto.Keccak256([]byte(eip712DomainVersion)),
		padUint(chainID),
		padAddress(verifyingContract),
	)
	return &Codec{domainSeparator: sep}
}

// Hash computes the domain-separated order hash. It is pure and deterministic:
// two orders with identical fields always hash identically regardless of Kind.
func (c *Codec) Hash(o Order) (common.Hash, error) {
	if err := validate(o); err != nil {
		return common.Hash{}, err
	}

	structHash := crypto.Keccak256(
		orderTypeHash.Bytes(),
		padAddress(o.Seller),
		padAddress(o.Buyer),
		padAddress(o.AssetContract),
		padUint(o.AssetId),
		padAddress(o.Currency),
		padUint(o.Price),
		padUint(o.Nonce),
		padUint(o.Deadline),
	)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, c.domainSeparator.Bytes(), structHash), nil
}

// Verify recovers the signer of the 65-byte signature over the order digest
// and checks it against the order's maker.
func (c *Codec) Verify(o Order, signature []byte) (common.Address, error) {
	digest, err := c.Hash(o)
	if err != nil {
		return common.Address{}, err
	}
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, "unexpected signature length")
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, "failed to recover public key")
	}

	signer := crypto.PubkeyToAddress(*pub)
	if signer != o.Maker() {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, "signature does not recover to the order maker")
	}

	return signer, nil
}

// Sign produces a maker signature over the order digest with V in {27, 28}.
func (c *Codec) Sign(o Order, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := c.Hash(o)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign order digest")
	}
	sig[64] += 27
	return sig, nil
}

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// Nonce and deadline travel as uint256 on the wire but are persisted as
	// 64-bit integers; larger values cannot be represented downstream.
	maxInt64 = big.NewInt(math.MaxInt64)
)

func validate(o Order) error {
	if o.Kind != KindListing && o.Kind != KindOffer {
		return errors.Wrap(ErrMalformedOrder, "unknown order kind")
	}
	if o.Seller == (common.Address{}) {
		return errors.Wrap(ErrMalformedOrder, "seller must not be the zero address")
	}
	if o.Kind == KindOffer && o.Buyer == (common.Address{}) {
		return errors.Wrap(ErrMalformedOrder, "offer must name a concrete buyer")
	}
	if o.AssetContract == (common.Address{}) {
		return errors.Wrap(ErrMalformedOrder, "asset contract must not be the zero address")
	}
	for _, v := range []struct {
		name string
		val  *big.Int
	}{
		{"assetId", o.AssetId},
		{"price", o.Price},
		{"nonce", o.Nonce},
		{"deadline", o.Deadline},
	} {
		if v.val == nil || v.val.Sign() < 0 || v.val.Cmp(maxUint256) > 0 {
			return errors.Wrap(ErrMalformedOrder, "field "+v.name+" is missing or out of uint256 range")
		}
	}
	if o.Price.Sign() == 0 {
		return errors.Wrap(ErrMalformedOrder, "price must be positive")
	}
	if o.Deadline.Sign() == 0 {
		return errors.Wrap(ErrMalformedOrder, "deadline must be set")
	}
	if o.Nonce.Cmp(maxInt64) > 0 {
		return errors.Wrap(ErrMalformedOrder, "field nonce exceeds the supported range")
	}
	if o.Deadline.Cmp(maxInt64) > 0 {
		return errors.Wrap(ErrMalformedOrder, "field deadline exceeds the supported range")
	}
	return nil
}

func padUint(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func padAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
