package db

// Order statuses. Transitions are monotonic: pending -> awaiting_product ->
// delivered, or pending -> cancelled. Everything else is rejected.
const (
	OrderPending         = "pending"
	OrderAwaitingProduct = "awaiting_product"
	OrderDelivered       = "delivered"
	OrderCancelled       = "cancelled"
)

// Removal categories recorded in the ledger.
const (
	RemovalDeleted     = "deleted"
	RemovalUnreachable = "unreachable"
	RemovalBlocked     = "blocked"
)

// Supported currencies.
const (
	CurrencyBTC = "btc"
	CurrencyLTC = "ltc"
)

type User struct {
	ID           uint  `gorm:"primaryKey"`
	TelegramID   int64 `gorm:"uniqueIndex"`
	Username     *string
	FirstName    string
	LastName     string
	LanguageCode string
	CreatedAt    int64
	LastActivity int64
}

type Category struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

type Product struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Price       float64 // USD
	Description string
	CategoryID  *uint
}

type WalletAddress struct {
	ID       uint `gorm:"primaryKey"`
	Currency string
	Address  string
	Label    string
	Tag      string
	AddedBy  int64
	AddedAt  int64
	Active   bool
}

type Order struct {
	ID        uint `gorm:"primaryKey"`
	UserID    int64
	ProductID uint
	Price     float64 // USD snapshot at creation
	Currency  string  // frozen at creation
	Status    string  `gorm:"default:pending"`
	CreatedAt int64
}

// DetectedTransaction is an append-only sighting of an inbound on-chain
// transfer to a watched address. TxID uniqueness is the dedup guarantee.
type DetectedTransaction struct {
	ID            uint   `gorm:"primaryKey"`
	TxID          string `gorm:"uniqueIndex"`
	Currency      string
	Address       string
	Amount        string // coin units, 8 decimal places; "0" = unknown
	Confirmations int
	BlockHeight   int64
	FirstSeenAt   int64
}

// RemovedUser archives every account the reconciler evicts. Write-once
// except RestoredAt. The (telegram_id, removed_on) pair makes re-archival
// after a crash between archive and delete an upsert no-op.
type RemovedUser struct {
	ID                uint   `gorm:"primaryKey"`
	TelegramID        int64  `gorm:"uniqueIndex:idx_removed_user_day"`
	RemovedOn         string `gorm:"uniqueIndex:idx_removed_user_day"` // YYYY-MM-DD
	Username          *string
	FirstName         string
	LastName          string
	LanguageCode      string
	OriginalCreatedAt int64
	LastActivity      int64
	RemovalReason     string
	RemovalCategory   string
	APIErrorMessage   string
	RemovedAt         int64
	RestoredAt        *int64
}
