package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/logger"
	"Shop-Telegram-bot/internal/throttle"
)

// keepLatest caps how many of a provider's returned transactions one tick
// examines per address.
const keepLatest = 10

// Watcher polls explorer providers for inbound transfers to the watched
// deposit addresses. It is advisory: it records sightings and notifies the
// admin group, and never mutates orders.
type Watcher struct {
	Chat       chat.Client
	Registry   *throttle.Registry
	AdminGroup int64
	Interval   time.Duration

	// Provider chains, tried in order until one answers.
	BTCProviders []Provider
	LTCProviders []Provider

	mu        sync.Mutex
	addresses map[string]string // address -> currency
}

func New(client chat.Client, registry *throttle.Registry, adminGroup int64, interval time.Duration) *Watcher {
	return &Watcher{
		Chat:       client,
		Registry:   registry,
		AdminGroup: adminGroup,
		Interval:   interval,
		addresses:  make(map[string]string),
	}
}

// LoadAddresses seeds the watch set from the active wallet_addresses rows.
func (w *Watcher) LoadAddresses() error {
	addrs, err := db.ListActiveWalletAddresses()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range addrs {
		w.addresses[a.Address] = a.Currency
	}
	return nil
}

func (w *Watcher) AddAddress(address, currency string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addresses[address] = currency
}

func (w *Watcher) RemoveAddress(address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.addresses, address)
}

func (w *Watcher) watchedSnapshot() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := make(map[string]string, len(w.addresses))
	for addr, cur := range w.addresses {
		snap[addr] = cur
	}
	return snap
}

// Run loops until the context is cancelled. Transient errors never
// terminate the loop.
func (w *Watcher) Run(ctx context.Context) {
	logger.Info("blockchain watcher started", zap.Duration("interval", w.Interval))
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("blockchain watcher stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick checks every watched address once.
func (w *Watcher) Tick(ctx context.Context) {
	for address, currency := range w.watchedSnapshot() {
		if ctx.Err() != nil {
			return
		}
		if err := w.checkAddress(ctx, address, currency); err != nil {
			logger.Error("address check failed",
				zap.String("address", address),
				zap.String("currency", currency),
				zap.Error(err))
		}
	}
}

func (w *Watcher) providersFor(currency string) []Provider {
	switch currency {
	case db.CurrencyBTC:
		return w.BTCProviders
	case db.CurrencyLTC:
		return w.LTCProviders
	}
	return nil
}

// checkAddress fetches recent transactions through the provider chain and
// records the new ones. Provider errors fall through to the next provider;
// exhaustion of the chain is the returned error.
func (w *Watcher) checkAddress(ctx context.Context, address, currency string) error {
	providers := w.providersFor(currency)
	if len(providers) == 0 {
		return fmt.Errorf("no providers configured for %s", currency)
	}

	var txs []Tx
	var lastErr error
	for _, p := range providers {
		var err error
		txs, err = p.RecentTransactions(ctx, address)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		logger.Warn("provider failed, falling back",
			zap.String("provider", p.Name()),
			zap.String("address", address),
			zap.Error(err))
	}
	if lastErr != nil {
		return fmt.Errorf("all providers exhausted: %w", lastErr)
	}

	if len(txs) > keepLatest {
		txs = txs[:keepLatest]
	}
	for _, tx := range txs {
		w.processSighting(address, currency, tx)
	}
	return nil
}

// processSighting deduplicates through the seen-set, then the database.
// The unique key on txid absorbs races and restarts.
func (w *Watcher) processSighting(address, currency string, tx Tx) {
	if w.Registry.SeenTx(tx.TxID) {
		return
	}
	known, err := db.HasDetectedTransaction(tx.TxID)
	if err != nil {
		logger.Error("detected transaction lookup failed", zap.String("txid", tx.TxID), zap.Error(err))
		return
	}
	if known {
		w.Registry.MarkSeen(tx.TxID)
		return
	}
	inserted, err := db.InsertDetectedTransaction(&db.DetectedTransaction{
		TxID:          tx.TxID,
		Currency:      currency,
		Address:       address,
		Amount:        tx.Amount,
		Confirmations: tx.Confirmations,
		BlockHeight:   tx.BlockHeight,
	})
	if err != nil {
		logger.Error("detected transaction insert failed", zap.String("txid", tx.TxID), zap.Error(err))
		return
	}
	w.Registry.MarkSeen(tx.TxID)
	if !inserted {
		return // lost an insert race; already processed elsewhere
	}

	logger.Info("new inbound transaction",
		zap.String("txid", tx.TxID),
		zap.String("currency", currency),
		zap.String("address", address),
		zap.String("amount", tx.Amount))
	w.notifyDetected(address, currency, tx)
}

func (w *Watcher) notifyDetected(address, currency string, tx Tx) {
	if w.AdminGroup == 0 {
		return
	}
	amount := tx.Amount + " " + currencyLabel(currency)
	if tx.Amount == "0" {
		amount = "unknown"
	}
	text := fmt.Sprintf("Incoming %s transaction detected\nAddress: %s\nAmount: %s\nTxID: %s",
		currencyLabel(currency), address, amount, tx.TxID)
	if _, err := w.Chat.SendText(w.AdminGroup, text); err != nil {
		logger.Error("transaction notification failed", zap.String("txid", tx.TxID), zap.Error(err))
	}
}

func currencyLabel(currency string) string {
	switch currency {
	case db.CurrencyBTC:
		return "BTC"
	case db.CurrencyLTC:
		return "LTC"
	}
	return currency
}
