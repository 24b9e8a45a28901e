// internal/services/blockchain_gateway.go
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vortexart/marketplace-backend/internal/config"
)

type InstructionType string

const (
	InstructionMint          InstructionType = "mint"
	InstructionTransfer      InstructionType = "transfer"
	InstructionTokenTransfer InstructionType = "token_transfer"
)

// Instruction is the ledger-side intent submitted to the chain. Reference is
// the internal id of the originating operation; retrying a failed operation
// submits the same intent again and receives a fresh transaction id.
type Instruction struct {
	Type       InstructionType `json:"type"`
	ArtworkID  *uuid.UUID      `json:"artwork_id,omitempty"`
	Reference  uuid.UUID       `json:"reference"`
	FromWallet string          `json:"from_wallet,omitempty"`
	ToWallet   string          `json:"to_wallet"`
	Amount     float64         `json:"amount,omitempty"`
}

type PendingTransaction struct {
	TxID string `json:"tx_id"`
}

type ConfirmationStatus string

const (
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationRejected  ConfirmationStatus = "rejected"
	// ConfirmationTimedOut means "unknown, re-check later" - the transaction
	// may still confirm on-chain. Callers must never treat it as failure.
	ConfirmationTimedOut ConfirmationStatus = "timed_out"
	ConfirmationPending  ConfirmationStatus = "pending"
)

type Confirmation struct {
	Status       ConfirmationStatus `json:"status"`
	TxID         string             `json:"tx_id"`
	BlockHeight  uint64             `json:"block_height,omitempty"`
	RejectReason string             `json:"reject_reason,omitempty"`
}

// Gateway is the thin adapter in front of the external chain. Components take
// it as a constructor argument so tests can substitute a fake.
type Gateway interface {
	Submit(ctx context.Context, instr Instruction) (*PendingTransaction, error)
	CheckStatus(ctx context.Context, txID string) (*Confirmation, error)
	AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) (*Confirmation, error)
	TokenBalance(ctx context.Context, wallet string) (float64, error)
	VerificationURL(txID string) string
}

// SolanaGateway talks JSON-RPC to a Solana node. Submission is fire-and-
// forget: a returned signature says nothing about finality.
type SolanaGateway struct {
	client *resty.Client
	cfg    config.BlockchainConfig
}

func NewSolanaGateway(cfg config.BlockchainConfig) *SolanaGateway {
	client := resty.New().
		SetBaseURL(cfg.RPCURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &SolanaGateway{
		client: client,
		cfg:    cfg,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (g *SolanaGateway) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var out rpcResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&out).
		// Decode as JSON even when a node omits the content type.
		ForceContentType("application/json").
		Post("")
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpc %s: status %d", method, resp.StatusCode())
	}
	if out.Error != nil {
		return nil, backoff.Permanent(fmt.Errorf("rpc %s: %d %s", method, out.Error.Code, out.Error.Message))
	}
	return out.Result, nil
}

// Submit encodes the instruction and sends it, retrying network failures with
// exponential backoff up to the configured attempt count. After exhaustion it
// fails with ErrGatewayUnavailable; retrying the originating operation is
// always safe since a fresh submission gets a new transaction id.
func (g *SolanaGateway) Submit(ctx context.Context, instr Instruction) (*PendingTransaction, error) {
	raw, err := json.Marshal(instr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode instruction: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(raw)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	attempts := g.cfg.MaxSubmitAttempts
	if attempts < 1 {
		attempts = 1
	}

	var txID string
	operation := func() error {
		result, err := g.call(ctx, "sendTransaction", payload, map[string]string{"encoding": "base64"})
		if err != nil {
			return err
		}
		return json.Unmarshal(result, &txID)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		logrus.WithError(err).WithField("instruction", instr.Type).
			Warn("Transaction submission exhausted retries")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &PendingTransaction{TxID: txID}, nil
}

type signatureStatus struct {
	Slot               uint64      `json:"slot"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

type signatureStatusResult struct {
	Value []*signatureStatus `json:"value"`
}

// CheckStatus performs a single, non-blocking status poll.
func (g *SolanaGateway) CheckStatus(ctx context.Context, txID string) (*Confirmation, error) {
	result, err := g.call(ctx, "getSignatureStatuses", []string{txID},
		map[string]bool{"searchTransactionHistory": true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	var statuses signatureStatusResult
	if err := json.Unmarshal(result, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode signature statuses: %w", err)
	}

	if len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return &Confirmation{Status: ConfirmationPending, TxID: txID}, nil
	}

	status := statuses.Value[0]
	if status.Err != nil {
		return &Confirmation{
			Status:       ConfirmationRejected,
			TxID:         txID,
			RejectReason: fmt.Sprintf("%v", status.Err),
		}, nil
	}

	if status.ConfirmationStatus == "finalized" || status.ConfirmationStatus == "confirmed" {
		return &Confirmation{
			Status:      ConfirmationConfirmed,
			TxID:        txID,
			BlockHeight: status.Slot,
		}, nil
	}

	return &Confirmation{Status: ConfirmationPending, TxID: txID}, nil
}

// AwaitConfirmation polls until the transaction is confirmed or rejected, or
// the caller-supplied timeout elapses. A timeout is reported as
// ConfirmationTimedOut with a nil error - it is a valid "unknown" state, not
// a failure.
func (g *SolanaGateway) AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) (*Confirmation, error) {
	if timeout <= 0 {
		timeout = time.Duration(g.cfg.ConfirmTimeout) * time.Second
	}

	pollInterval := time.Duration(g.cfg.ConfirmPollSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		confirmation, err := g.CheckStatus(ctx, txID)
		if err == nil && confirmation.Status != ConfirmationPending {
			return confirmation, nil
		}
		if err != nil {
			// Transient poll failures count against the timeout, nothing else.
			logrus.WithError(err).WithField("tx_id", txID).Debug("Status poll failed")
		}

		select {
		case <-ctx.Done():
			return &Confirmation{Status: ConfirmationTimedOut, TxID: txID}, nil
		case <-time.After(pollInterval):
		}
	}
}

type tokenBalanceResult struct {
	Value struct {
		UIAmount float64 `json:"uiAmount"`
	} `json:"value"`
}

// TokenBalance reads the TOLA token balance of a wallet's token account.
func (g *SolanaGateway) TokenBalance(ctx context.Context, wallet string) (float64, error) {
	result, err := g.call(ctx, "getTokenAccountBalance", wallet)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	var balance tokenBalanceResult
	if err := json.Unmarshal(result, &balance); err != nil {
		return 0, fmt.Errorf("failed to decode token balance: %w", err)
	}

	return balance.Value.UIAmount, nil
}

// VerificationURL formats the public explorer link for a transaction. Pure
// formatting, no I/O.
func (g *SolanaGateway) VerificationURL(txID string) string {
	url := fmt.Sprintf("%s/tx/%s", g.cfg.ExplorerURL, txID)
	if g.cfg.Network != "" && g.cfg.Network != "mainnet-beta" {
		url += "?cluster=" + g.cfg.Network
	}
	return url
}
