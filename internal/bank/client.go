package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the upstream store has no record for the id.
var ErrNotFound = errors.New("bank: not found")

// Reader fetches account data from the bank read service.
type Reader interface {
	Account(ctx context.Context, accountID string) (AccountSnapshot, error)
	Transactions(ctx context.Context, accountID string, since time.Time) ([]Transaction, error)
}

// IncomeDetector fetches the recurring-income signal for an account.
// A nil signal with a nil error means no recurring income was detected.
type IncomeDetector interface {
	RecurringIncome(ctx context.Context, accountID, recurringTransactionID string) (*RecurringIncome, error)
}

// Client talks to the bank-account/transaction read service and the
// recurring-income signal service over HTTP.
type Client struct {
	bankURL   string
	incomeURL string
	http      *http.Client
}

func NewClient(bankURL, incomeURL string, timeout time.Duration) *Client {
	return &Client{
		bankURL:   bankURL,
		incomeURL: incomeURL,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Account(ctx context.Context, accountID string) (AccountSnapshot, error) {
	var snap AccountSnapshot
	err := c.getJSON(ctx, fmt.Sprintf("%s/accounts/%s", c.bankURL, url.PathEscape(accountID)), &snap)
	return snap, err
}

func (c *Client) Transactions(ctx context.Context, accountID string, since time.Time) ([]Transaction, error) {
	var txs []Transaction
	u := fmt.Sprintf("%s/accounts/%s/transactions?since=%s",
		c.bankURL, url.PathEscape(accountID), url.QueryEscape(since.Format(time.RFC3339)))
	if err := c.getJSON(ctx, u, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) RecurringIncome(ctx context.Context, accountID, recurringTransactionID string) (*RecurringIncome, error) {
	u := fmt.Sprintf("%s/accounts/%s/recurring-income", c.incomeURL, url.PathEscape(accountID))
	if recurringTransactionID != "" {
		u += "?transactionId=" + url.QueryEscape(recurringTransactionID)
	}

	var ri RecurringIncome
	err := c.getJSON(ctx, u, &ri)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ri, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bank service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bank service returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bank service response: %w", err)
	}
	return nil
}
