// Package xrpl implements the conversation ledger contract against the XRP Ledger
// JSON-RPC API and a testnet faucet.
package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/internal/xrpamount"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultRPCURL    = "https://s.altnet.rippletest.net:51234"
	DefaultFaucetURL = "https://faucet.altnet.rippletest.net/accounts"

	methodAccountInfo   = "account_info"
	methodFee           = "fee"
	methodLedgerCurrent = "ledger_current"
	methodSubmit        = "submit"

	ledgerIndexValidated   = "validated"
	ledgerIndexCurrent     = "current"
	lastLedgerOffset       = 20
	minimumFeeDrops        = 10
	transactionTypePayment = "Payment"
	rpcStatusSuccess       = "success"
	errorAccountNotFound   = "actNotFound"

	engineResultSuccess      = "tesSUCCESS"
	engineResultQueued       = "terQUEUED"
	engineResultUnfunded     = "tecUNFUNDED_PAYMENT"
	engineResultInsufficient = "tecINSUFF_FEE"

	fieldTransactionType    = "TransactionType"
	fieldAccount            = "Account"
	fieldDestination        = "Destination"
	fieldAmount             = "Amount"
	fieldFee                = "Fee"
	fieldSequence           = "Sequence"
	fieldLastLedgerSequence = "LastLedgerSequence"

	contentTypeJSON    = "application/json"
	defaultHTTPTimeout = 20 * time.Second
	maxResponseBytes   = 1 << 20
)

// ImageRenderer encodes an address as an image.
type ImageRenderer interface {
	Render(address string) ([]byte, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithLogger installs a zap logger for RPC failures.
func WithLogger(logger *zap.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithSigner overrides the transaction signer.
func WithSigner(signer Signer) Option {
	return func(client *Client) {
		if signer != nil {
			client.signer = signer
		}
	}
}

// Client talks to rippled over JSON-RPC. Payments are autofilled, signed locally and
// submitted as a blob; they are reported with their preliminary engine result.
type Client struct {
	rpcURL     string
	faucetURL  string
	renderer   ImageRenderer
	signer     Signer
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates endpoints and returns a Client.
func NewClient(rpcURL string, faucetURL string, renderer ImageRenderer, options ...Option) (*Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("xrpl: rpc url is required")
	}
	if strings.TrimSpace(faucetURL) == "" {
		return nil, fmt.Errorf("xrpl: faucet url is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("xrpl: image renderer is required")
	}
	client := &Client{
		rpcURL:     strings.TrimSpace(rpcURL),
		faucetURL:  strings.TrimSpace(faucetURL),
		renderer:   renderer,
		signer:     SeedSigner{},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type rpcResult struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type accountInfoParams struct {
	Account     string `json:"account"`
	LedgerIndex string `json:"ledger_index"`
}

type accountInfoResult struct {
	rpcResult
	AccountData struct {
		Balance  string `json:"Balance"`
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
}

type feeResult struct {
	rpcResult
	Drops struct {
		BaseFee       string `json:"base_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

type ledgerCurrentResult struct {
	rpcResult
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}

type submitParams struct {
	TxBlob string `json:"tx_blob"`
}

type submitResult struct {
	rpcResult
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

type faucetResponse struct {
	Account struct {
		ClassicAddress string `json:"classicAddress"`
		Address        string `json:"address"`
		Secret         string `json:"secret"`
	} `json:"account"`
	Seed string `json:"seed"`
}

// CreateWallet asks the faucet for a new funded testnet account.
func (client *Client) CreateWallet(ctx context.Context) (conversation.Credentials, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.faucetURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return conversation.Credentials{}, fmt.Errorf("%w: %w", conversation.ErrFaucetFailure, err)
	}
	request.Header.Set("Content-Type", contentTypeJSON)
	response, err := client.httpClient.Do(request)
	if err != nil {
		client.logger.Warn("faucet request failed", zap.Error(err))
		return conversation.Credentials{}, fmt.Errorf("%w: %w", conversation.ErrNetworkFailure, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return conversation.Credentials{}, fmt.Errorf("%w: %w", conversation.ErrNetworkFailure, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		client.logger.Warn("faucet rejected request", zap.Int("status", response.StatusCode))
		return conversation.Credentials{}, fmt.Errorf("%w: status %d", conversation.ErrFaucetFailure, response.StatusCode)
	}
	var payload faucetResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return conversation.Credentials{}, fmt.Errorf("%w: decode response: %w", conversation.ErrFaucetFailure, err)
	}
	address := payload.Account.ClassicAddress
	if address == "" {
		address = payload.Account.Address
	}
	secret := payload.Seed
	if secret == "" {
		secret = payload.Account.Secret
	}
	if address == "" || secret == "" {
		return conversation.Credentials{}, fmt.Errorf("%w: response is missing credentials", conversation.ErrFaucetFailure)
	}
	return conversation.Credentials{Address: address, Secret: secret}, nil
}

// GetBalance returns the validated XRP balance of address.
func (client *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var result accountInfoResult
	params := accountInfoParams{Account: address, LedgerIndex: ledgerIndexValidated}
	if err := client.call(ctx, methodAccountInfo, params, &result); err != nil {
		return decimal.Decimal{}, err
	}
	if result.Error == errorAccountNotFound {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", conversation.ErrAccountNotFound, address)
	}
	if result.Status != rpcStatusSuccess {
		return decimal.Decimal{}, fmt.Errorf("%w: account_info %s %s", conversation.ErrLedgerUnavailable, result.Error, result.ErrorMessage)
	}
	balance, err := xrpamount.ParseDrops(result.AccountData.Balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", conversation.ErrLedgerUnavailable, err)
	}
	return balance, nil
}

// SendPayment autofills, signs and submits an XRP payment from source to destination.
// Only the signed blob is sent to the server.
func (client *Client) SendPayment(ctx context.Context, source conversation.Credentials, amount decimal.Decimal, destination string) (conversation.Receipt, error) {
	drops, err := xrpamount.ToDrops(amount)
	if err != nil {
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	transaction, err := client.autofillPayment(ctx, source.Address, destination, drops)
	if err != nil {
		return conversation.Receipt{}, err
	}
	txBlob, err := client.signer.Sign(source.Secret, transaction)
	if err != nil {
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrSubmissionFailure, err)
	}
	var result submitResult
	if err := client.call(ctx, methodSubmit, submitParams{TxBlob: txBlob}, &result); err != nil {
		return conversation.Receipt{}, err
	}
	if result.Error != "" {
		return conversation.Receipt{}, fmt.Errorf("%w: %s %s", conversation.ErrSubmissionFailure, result.Error, result.ErrorMessage)
	}
	switch result.EngineResult {
	case engineResultSuccess, engineResultQueued:
		return conversation.Receipt{TransactionID: result.TxJSON.Hash, Status: result.EngineResult}, nil
	case engineResultUnfunded, engineResultInsufficient:
		return conversation.Receipt{}, fmt.Errorf("%w: %s", conversation.ErrInsufficientFunds, result.EngineResult)
	default:
		return conversation.Receipt{}, fmt.Errorf("%w: %s %s", conversation.ErrSubmissionFailure, result.EngineResult, result.EngineResultMessage)
	}
}

// autofillPayment builds the payment with sequence, fee and expiry taken from the server.
func (client *Client) autofillPayment(ctx context.Context, account string, destination string, drops int64) (map[string]interface{}, error) {
	var accountInfo accountInfoResult
	if err := client.call(ctx, methodAccountInfo, accountInfoParams{Account: account, LedgerIndex: ledgerIndexCurrent}, &accountInfo); err != nil {
		return nil, err
	}
	if accountInfo.Error == errorAccountNotFound {
		return nil, fmt.Errorf("%w: %s", conversation.ErrInsufficientFunds, account)
	}
	if accountInfo.Status != rpcStatusSuccess {
		return nil, fmt.Errorf("%w: account_info %s %s", conversation.ErrLedgerUnavailable, accountInfo.Error, accountInfo.ErrorMessage)
	}
	var fee feeResult
	if err := client.call(ctx, methodFee, struct{}{}, &fee); err != nil {
		return nil, err
	}
	if fee.Status != rpcStatusSuccess {
		return nil, fmt.Errorf("%w: fee %s %s", conversation.ErrLedgerUnavailable, fee.Error, fee.ErrorMessage)
	}
	var current ledgerCurrentResult
	if err := client.call(ctx, methodLedgerCurrent, struct{}{}, &current); err != nil {
		return nil, err
	}
	if current.Status != rpcStatusSuccess {
		return nil, fmt.Errorf("%w: ledger_current %s %s", conversation.ErrLedgerUnavailable, current.Error, current.ErrorMessage)
	}
	return map[string]interface{}{
		fieldTransactionType:    transactionTypePayment,
		fieldAccount:            account,
		fieldDestination:        destination,
		fieldAmount:             strconv.FormatInt(drops, 10),
		fieldFee:                strconv.FormatInt(feeDrops(fee), 10),
		fieldSequence:           accountInfo.AccountData.Sequence,
		fieldLastLedgerSequence: current.LedgerCurrentIndex + lastLedgerOffset,
	}, nil
}

// feeDrops prefers the open ledger fee and never goes below the network minimum.
func feeDrops(fee feeResult) int64 {
	best := int64(minimumFeeDrops)
	for _, raw := range []string{fee.Drops.BaseFee, fee.Drops.OpenLedgerFee} {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && value > best {
			best = value
		}
	}
	return best
}

// RenderAddressImage renders address as a QR PNG.
func (client *Client) RenderAddressImage(address string) ([]byte, error) {
	return client.renderer.Render(address)
}

// ValidateAddress checks classic address syntax and checksum.
func (client *Client) ValidateAddress(address string) error {
	return ValidateAddress(address)
}

func (client *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: []interface{}{params}})
	if err != nil {
		return fmt.Errorf("xrpl: encode %s: %w", method, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("xrpl: build %s: %w", method, err)
	}
	request.Header.Set("Content-Type", contentTypeJSON)
	response, err := client.httpClient.Do(request)
	if err != nil {
		client.logger.Warn("rpc request failed", zap.String("method", method), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", conversation.ErrNetworkFailure, method, err)
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", conversation.ErrNetworkFailure, method, err)
	}
	if response.StatusCode != http.StatusOK {
		client.logger.Warn("rpc returned non-200", zap.String("method", method), zap.Int("status", response.StatusCode))
		return fmt.Errorf("%w: %s: status %d", conversation.ErrNetworkFailure, method, response.StatusCode)
	}
	envelope := struct {
		Result json.RawMessage `json:"result"`
	}{}
	if err := json.Unmarshal(responseBody, &envelope); err != nil || len(envelope.Result) == 0 {
		return fmt.Errorf("%w: %s: malformed response", conversation.ErrLedgerUnavailable, method)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("%w: %s: %w", conversation.ErrLedgerUnavailable, method, err)
	}
	return nil
}
