// Package history reconciles the external transfer-history indexer into a
// canonical, de-duplicated transfer log. History is best-effort: it must
// never block the rest of the tool.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"xcm-transfer/config"
)

const (
	transfersPath = "/api/scan/xcm/list"
	messageType   = "transfer"
)

// Transfer is one raw record as returned by the indexer
type Transfer struct {
	MessageHash    string  `json:"message_hash"`
	OriginParaID   uint32  `json:"origin_para_id"`
	DestParaID     uint32  `json:"dest_para_id"`
	BlockTimestamp int64   `json:"block_timestamp"` // unix seconds
	Status         string  `json:"status"`
	Assets         []Asset `json:"assets"`
}

// Asset is one asset entry on a raw transfer record
type Asset struct {
	Symbol   string `json:"symbol"`
	Amount   string `json:"amount"` // minor-unit integer string
	Decimals uint8  `json:"decimals"`
}

type listRequest struct {
	FilterParaID uint32 `json:"filter_para_id,omitempty"`
	Row          int    `json:"row"`
	Page         int    `json:"page"`
	Address      string `json:"address"`
	MessageType  string `json:"message_type"`
}

type listResponse struct {
	Code int `json:"code"`
	Data struct {
		Transfers []Transfer `json:"transfers"`
	} `json:"data"`
}

// Client queries the indexer's transfer-history API
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an indexer client with a pooled HTTP transport
func NewClient(cfg config.IndexerConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log.With().Str("component", "indexer").Logger(),
	}
}

// ListTransfers fetches one page of transfer records for an account,
// optionally filtered by destination chain id (0 = no filter). Records come
// back most recent first; the indexer owns the ordering.
func (c *Client) ListTransfers(ctx context.Context, account string, destFilter uint32, page int) ([]Transfer, error) {
	body, err := json.Marshal(listRequest{
		FilterParaID: destFilter,
		Row:          c.pageSize,
		Page:         page,
		Address:      account,
		MessageType:  messageType,
	})
	if err != nil {
		return nil, fmt.Errorf("encode indexer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transfersPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build indexer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status code %d", resp.StatusCode)
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("malformed indexer response: %w", err)
	}
	if decoded.Code != 0 {
		return nil, fmt.Errorf("indexer error code %d", decoded.Code)
	}

	return decoded.Data.Transfers, nil
}
