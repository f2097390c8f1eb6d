package gobind

import (
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reference imports to suppress errors if they are not otherwise used.
var (
	_ = big.NewInt
	_ = strings.NewReader
	_ = ethereum.NotFound
	_ = bind.Bind
	_ = common.Big1
	_ = types.BloomLookup
)

// MarketplaceOrder is an auto generated low-level Go binding around an user-defined struct.
type MarketplaceOrder struct {
	Seller        common.Address
	Buyer         common.Address
	AssetContract common.Address
	AssetId       *big.Int
	Currency      common.Address
	Price         *big.Int
	Nonce         *big.Int
	Deadline      *big.Int
}

// MarketplaceMetaData contains all meta data concerning the Marketplace contract.
var MarketplaceMetaData = &bind.MetaData{
	ABI: `[
		{"inputs":[{"components":[{"name":"seller","type":"address"},{"name":"buyer","type":"address"},{"name":"assetContract","type":"address"},{"name":"assetId","type":"uint256"},{"name":"currency","type":"address"},{"name":"price","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"order","type":"tuple"},{"name":"signature","type":"bytes"}],"name":"fulfillOrder","outputs":[],"stateMutability":"payable","type":"function"},
		{"inputs":[{"components":[{"name":"seller","type":"address"},{"name":"buyer","type":"address"},{"name":"assetContract","type":"address"},{"name":"assetId","type":"uint256"},{"name":"currency","type":"address"},{"name":"price","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"order","type":"tuple"},{"name":"signature","type":"bytes"}],"name":"fulfillOffer","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"components":[{"name":"seller","type":"address"},{"name":"buyer","type":"address"},{"name":"assetContract","type":"address"},{"name":"assetId","type":"uint256"},{"name":"currency","type":"address"},{"name":"price","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"order","type":"tuple"}],"name":"cancelOrder","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[],"name":"incrementNonce","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"orderHash","type":"bytes32"}],"name":"orderStatus","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"user","type":"address"}],"name":"userNonces","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"anonymous":false,"inputs":[{"indexed":true,"name":"orderHash","type":"bytes32"},{"indexed":true,"name":"seller","type":"address"},{"indexed":false,"name":"buyer","type":"address"},{"indexed":false,"name":"assetContract","type":"address"},{"indexed":false,"name":"assetId","type":"uint256"},{"indexed":false,"name":"price","type":"uint256"}],"name":"OrderFulfilled","type":"event"},
		{"anonymous":false,"inputs":[{"indexed":true,"name":"orderHash","type":"bytes32"},{"indexed":true,"name":"seller","type":"address"},{"indexed":false,"name":"assetContract","type":"address"},{"indexed":false,"name":"assetId","type":"uint256"}],"name":"OrderCancelled","type":"event"},
		{"anonymous":false,"inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"newNonce","type":"uint256"}],"name":"NonceIncremented","type":"event"}
	]`,
}

// Marketplace is an auto generated Go binding around an Ethereum contract.
type Marketplace struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewMarketplace creates a new instance of Marketplace, bound to a specific deployed contract.
func NewMarketplace(address common.Address, backend bind.ContractBackend) (*Marketplace, error) {
	parsed, err := MarketplaceMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(address, *parsed, backend, backend, backend)
	return &Marketplace{address: address, abi: *parsed, contract: contract}, nil
}

// Address returns the address the binding is bound to.
func (m *Marketplace) Address() common.Address {
	return m.address
}

// Abi returns the parsed contract ABI.
func (m *Marketplace) Abi() abi.ABI {
	return m.abi
}

// OrderStatus is a free data retrieval call binding the contract method orderStatus.
// Returns true once the orderHash has been consumed by a fulfillment or cancellation.
func (m *Marketplace) OrderStatus(opts *bind.CallOpts, orderHash [32]byte) (bool, error) {
	var out []interface{}
	err := m.contract.Call(opts, &out, "orderStatus", orderHash)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// UserNonces is a free data retrieval call binding the contract method userNonces.
func (m *Marketplace) UserNonces(opts *bind.CallOpts, user common.Address) (*big.Int, error) {
	var out []interface{}
	err := m.contract.Call(opts, &out, "userNonces", user)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// FulfillOrder is a paid mutator transaction binding the contract method fulfillOrder.
func (m *Marketplace) FulfillOrder(opts *bind.TransactOpts, order MarketplaceOrder, signature []byte) (*types.Transaction, error) {
	return m.contract.Transact(opts, "fulfillOrder", order, signature)
}

// FulfillOffer is a paid mutator transaction binding the contract method fulfillOffer.
func (m *Marketplace) FulfillOffer(opts *bind.TransactOpts, order MarketplaceOrder, signature []byte) (*types.Transaction, error) {
	return m.contract.Transact(opts, "fulfillOffer", order, signature)
}

// CancelOrder is a paid mutator transaction binding the contract method cancelOrder.
func (m *Marketplace) CancelOrder(opts *bind.TransactOpts, order MarketplaceOrder) (*types.Transaction, error) {
	return m.contract.Transact(opts, "cancelOrder", order)
}

// IncrementNonce is a paid mutator transaction binding the contract method incrementNonce.
func (m *Marketplace) IncrementNonce(opts *bind.TransactOpts) (*types.Transaction, error) {
	return m.contract.Transact(opts, "incrementNonce")
}

// MarketplaceOrderFulfilled represents a OrderFulfilled event raised by the Marketplace contract.
type MarketplaceOrderFulfilled struct {
	OrderHash     [32]byte
	Seller        common.Address
	Buyer         common.Address
	AssetContract common.Address
	AssetId       *big.Int
	Price         *big.Int
	Raw           types.Log
}

// MarketplaceOrderCancelled represents a OrderCancelled event raised by the Marketplace contract.
type MarketplaceOrderCancelled struct {
	OrderHash     [32]byte
	Seller        common.Address
	AssetContract common.Address
	AssetId       *big.Int
	Raw           types.Log
}

// MarketplaceNonceIncremented represents a NonceIncremented event raised by the Marketplace contract.
type MarketplaceNonceIncremented struct {
	User     common.Address
	NewNonce *big.Int
	Raw      types.Log
}

// ParseOrderFulfilled is a log parse operation binding the contract event OrderFulfilled.
func (m *Marketplace) ParseOrderFulfilled(log types.Log) (*MarketplaceOrderFulfilled, error) {
	event := new(MarketplaceOrderFulfilled)
	if err := m.contract.UnpackLog(event, "OrderFulfilled", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// ParseOrderCancelled is a log parse operation binding the contract event OrderCancelled.
func (m *Marketplace) ParseOrderCancelled(log types.Log) (*MarketplaceOrderCancelled, error) {
	event := new(MarketplaceOrderCancelled)
	if err := m.contract.UnpackLog(event, "OrderCancelled", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// ParseNonceIncremented is a log parse operation binding the contract event NonceIncremented.
func (m *Marketplace) ParseNonceIncremented(log types.Log) (*MarketplaceNonceIncremented, error) {
	event := new(MarketplaceNonceIncremented)
	if err := m.contract.UnpackLog(event, "NonceIncremented", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
