package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// SaveReceipt records a completed placement. The idempotency key is the
// primary key and conflicts are ignored, so a retried placement with the
// same key never creates a second record.
func (s *Store) SaveReceipt(ctx context.Context, receipt models.Receipt) error {
	query := `
		INSERT INTO receipts (idempotency_key, username, address_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		receipt.IdempotencyKey, receipt.Username, receipt.AddressID, receipt.Amount)
	return err
}

// ReceiptByKey retrieves a receipt by idempotency key
func (s *Store) ReceiptByKey(ctx context.Context, key string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.GetContext(ctx, &receipt,
		"SELECT * FROM receipts WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receipt not found: %s", key)
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReceiptsByUsername retrieves a user's receipts, newest first
func (s *Store) ReceiptsByUsername(ctx context.Context, username string) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := s.db.SelectContext(ctx, &receipts,
		"SELECT * FROM receipts WHERE username = $1 ORDER BY created_at DESC", username)
	return receipts, err
}
