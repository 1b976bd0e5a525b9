package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Tx is one inbound transaction sighting as reported by an explorer.
type Tx struct {
	TxID          string
	Amount        string // coin units, 8 decimal places; "0" = unknown
	Confirmations int
	BlockHeight   int64
}

// Provider lists recent transactions paying a given address. Providers for
// one currency are tried in order; the first non-error response wins.
type Provider interface {
	Name() string
	RecentTransactions(ctx context.Context, address string) ([]Tx, error)
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// formatCoinAmount renders satoshi-style base units as a decimal string
// with 8 places.
func formatCoinAmount(baseUnits int64) string {
	if baseUnits < 0 {
		baseUnits = 0
	}
	return fmt.Sprintf("%d.%08d", baseUnits/1e8, baseUnits%1e8)
}

// esploraTx is the shape shared by Blockstream and Mempool (Esplora API).
type esploraTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
}

// EsploraProvider serves the Blockstream and Mempool BTC endpoints, which
// share the Esplora address API.
type EsploraProvider struct {
	ProviderName string
	BaseURL      string
}

func (p *EsploraProvider) Name() string { return p.ProviderName }

func (p *EsploraProvider) RecentTransactions(ctx context.Context, address string) ([]Tx, error) {
	var raw []esploraTx
	endpoint := fmt.Sprintf("%s/address/%s/txs", p.BaseURL, url.PathEscape(address))
	if err := getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", p.ProviderName, err)
	}
	txs := make([]Tx, 0, len(raw))
	for _, t := range raw {
		var paid int64
		for _, out := range t.Vout {
			if out.ScriptPubKeyAddress == address {
				paid += out.Value
			}
		}
		if paid == 0 {
			continue // not an inbound transfer to this address
		}
		confirmations := 0
		if t.Status.Confirmed {
			confirmations = 1
		}
		txs = append(txs, Tx{
			TxID:          t.TxID,
			Amount:        formatCoinAmount(paid),
			Confirmations: confirmations,
			BlockHeight:   t.Status.BlockHeight,
		})
	}
	return txs, nil
}

// BlockchairProvider serves both BTC and LTC. The dashboards endpoint only
// returns txids for the address, so amounts are reported as unknown ("0").
type BlockchairProvider struct {
	BaseURL string
	Chain   string // "bitcoin" or "litecoin"
	APIKey  string
}

func (p *BlockchairProvider) Name() string { return "blockchair/" + p.Chain }

func (p *BlockchairProvider) RecentTransactions(ctx context.Context, address string) ([]Tx, error) {
	endpoint := fmt.Sprintf("%s/%s/dashboards/address/%s?limit=10", p.BaseURL, p.Chain, url.PathEscape(address))
	if p.APIKey != "" {
		endpoint += "&key=" + url.QueryEscape(p.APIKey)
	}
	var raw struct {
		Data map[string]struct {
			Transactions []string `json:"transactions"`
		} `json:"data"`
	}
	if err := getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	entry, ok := raw.Data[address]
	if !ok {
		return nil, fmt.Errorf("%s: address %s missing from response", p.Name(), address)
	}
	txs := make([]Tx, 0, len(entry.Transactions))
	for _, txid := range entry.Transactions {
		txs = append(txs, Tx{TxID: txid, Amount: "0"})
	}
	return txs, nil
}

// BlockcypherProvider serves LTC.
type BlockcypherProvider struct {
	BaseURL string
	APIKey  string
}

func (p *BlockcypherProvider) Name() string { return "blockcypher/ltc" }

func (p *BlockcypherProvider) RecentTransactions(ctx context.Context, address string) ([]Tx, error) {
	endpoint := fmt.Sprintf("%s/ltc/main/addrs/%s?limit=10", p.BaseURL, url.PathEscape(address))
	if p.APIKey != "" {
		endpoint += "&token=" + url.QueryEscape(p.APIKey)
	}
	var raw struct {
		TxRefs []struct {
			TxHash        string `json:"tx_hash"`
			Value         int64  `json:"value"`
			Confirmations int    `json:"confirmations"`
			BlockHeight   int64  `json:"block_height"`
			TxInputN      int    `json:"tx_input_n"`
		} `json:"txrefs"`
	}
	if err := getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	txs := make([]Tx, 0, len(raw.TxRefs))
	for _, ref := range raw.TxRefs {
		if ref.TxInputN >= 0 {
			continue // spend from the address, not an inbound transfer
		}
		height := ref.BlockHeight
		if height < 0 {
			height = 0
		}
		txs = append(txs, Tx{
			TxID:          ref.TxHash,
			Amount:        formatCoinAmount(ref.Value),
			Confirmations: ref.Confirmations,
			BlockHeight:   height,
		})
	}
	return txs, nil
}
