// Copyright 2025 Covenant Protocol
//
// EVM Anchoring Sink
// Publishes covenant anchors to a registry contract on an EVM chain.
// The registry stores (covenantId, contentHash) pairs keyed by covenant
// id; re-anchoring the same id is rejected by the contract.

package anchor

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
)

// CovenantRegistry contract ABI: two write methods (single covenant
// registration and batch root commitment) plus a read-back accessor
const covenantRegistryABI = `[
	{
		"inputs": [
			{"name": "covenantId", "type": "bytes32"},
			{"name": "contentHash", "type": "bytes32"}
		],
		"name": "registerCovenant",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "batchRoot", "type": "bytes32"},
			{"name": "batchSize", "type": "uint256"}
		],
		"name": "commitBatch",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "covenantId", "type": "bytes32"}],
		"name": "anchors",
		"outputs": [
			{"name": "contentHash", "type": "bytes32"},
			{"name": "blockNumber", "type": "uint256"},
			{"name": "anchoredBy", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// EVMConfig configures the EVM sink
type EVMConfig struct {
	RPCEndpoint     string
	ChainID         int64
	PrivateKeyHex   string
	ContractAddress string
	Logger          *log.Logger
}

// EVMSink anchors covenant records to the registry contract
type EVMSink struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	logger   *log.Logger
}

// NewEVMSink dials the RPC endpoint and binds the registry contract
func NewEVMSink(ctx context.Context, cfg *EVMConfig) (*EVMSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("EVM config is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Anchor] ", log.LstdFlags)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum endpoint: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("invalid ethereum private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(covenantRegistryABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, parsed, client, client, client)

	return &EVMSink{
		client:   client,
		contract: contract,
		auth:     auth,
		logger:   cfg.Logger,
	}, nil
}

// Anchor implements Sink by submitting a registerCovenant transaction
func (s *EVMSink) Anchor(ctx context.Context, rec Record) error {
	idBytes, err := crypto.FromHex(rec.CovenantID)
	if err != nil || len(idBytes) != 32 {
		return fmt.Errorf("covenant id must be a 32-byte hex hash")
	}
	hashBytes, err := crypto.FromHex(rec.ContentHash)
	if err != nil || len(hashBytes) != 32 {
		return fmt.Errorf("content hash must be a 32-byte hex hash")
	}

	var id, contentHash [32]byte
	copy(id[:], idBytes)
	copy(contentHash[:], hashBytes)

	opts := *s.auth
	opts.Context = ctx
	tx, err := s.contract.Transact(&opts, "registerCovenant", id, contentHash)
	if err != nil {
		return fmt.Errorf("registerCovenant transaction failed: %w", err)
	}

	s.logger.Printf("anchored covenant %s in tx %s", rec.CovenantID[:8], tx.Hash().Hex())
	return nil
}

// AnchorBatch implements Sink by committing a batch Merkle root
func (s *EVMSink) AnchorBatch(ctx context.Context, commitment BatchCommitment) error {
	rootBytes, err := crypto.FromHex(commitment.Root)
	if err != nil || len(rootBytes) != 32 {
		return fmt.Errorf("batch root must be a 32-byte hex hash")
	}
	var root [32]byte
	copy(root[:], rootBytes)

	opts := *s.auth
	opts.Context = ctx
	tx, err := s.contract.Transact(&opts, "commitBatch", root, big.NewInt(int64(commitment.Size)))
	if err != nil {
		return fmt.Errorf("commitBatch transaction failed: %w", err)
	}

	s.logger.Printf("committed batch of %d anchor(s) under root %s in tx %s",
		commitment.Size, commitment.Root[:8], tx.Hash().Hex())
	return nil
}

// Close implements Sink
func (s *EVMSink) Close() error {
	s.client.Close()
	return nil
}
