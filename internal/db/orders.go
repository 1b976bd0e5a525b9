package db

import (
	"time"
)

// CreateOrder inserts a new pending order with a snapshot of price and
// currency.
func CreateOrder(userID int64, productID uint, price float64, currency string) (*Order, error) {
	order := Order{
		UserID:    userID,
		ProductID: productID,
		Price:     price,
		Currency:  currency,
		Status:    OrderPending,
		CreatedAt: time.Now().Unix(),
	}
	if err := DB.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(orderID uint) (*Order, error) {
	var order Order
	if err := DB.First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetUserOrders returns the user's orders, newest first.
func GetUserOrders(userID int64, limit int) ([]Order, error) {
	var orders []Order
	err := DB.Where("user_id = ?", userID).Order("id desc").Limit(limit).Find(&orders).Error
	return orders, err
}

// TransitionOrder advances an order from one status to another. The
// conditional update is the only way status changes; the affected-row count
// is the truth about whether the transition happened.
func TransitionOrder(orderID uint, from, to string) (bool, error) {
	res := DB.Model(&Order{}).Where("id = ? AND status = ?", orderID, from).Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func GetProduct(productID uint) (*Product, error) {
	var product Product
	if err := DB.First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func ListProducts() ([]Product, error) {
	var products []Product
	err := DB.Order("id").Find(&products).Error
	return products, err
}

// ActiveWalletAddress returns the most recently added active deposit
// address for the currency.
func ActiveWalletAddress(currency string) (*WalletAddress, error) {
	var addr WalletAddress
	err := DB.Where("currency = ? AND active = ?", currency, true).
		Order("added_at desc, id desc").First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func ListActiveWalletAddresses() ([]WalletAddress, error) {
	var addrs []WalletAddress
	err := DB.Where("active = ?", true).Find(&addrs).Error
	return addrs, err
}
