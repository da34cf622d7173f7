package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/domain/order"
)

// PostgresOrderStore persists orders and their item snapshots.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

type postgresOrderTx struct {
	tx *sql.Tx
}

// WithinTx runs fn inside one database transaction. fn returning an error
// rolls everything back.
func (s *PostgresOrderStore) WithinTx(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&postgresOrderTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (t *postgresOrderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, guest_email, guest_name, shipping_address,
			payment_method, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, nullable(o.UserID), nullable(o.GuestEmail), nullable(o.GuestName),
		o.ShippingAddress, string(o.PaymentMethod), o.TotalAmount, string(o.Status),
		o.CreatedAt, o.UpdatedAt)
	return err
}

// InsertItems preserves insertion order: position is the presentation order.
func (t *postgresOrderTx) InsertItems(ctx context.Context, orderID string, items []order.OrderItem) error {
	for i, item := range items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, variant_id,
				quantity, price_at_time_of_order, product_name, product_sku, product_image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, orderID, i, item.ProductID, item.VariantID, item.Quantity,
			item.PriceAtTimeOfOrder, item.ProductName, item.ProductSKU, item.ProductImageURL)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *postgresOrderTx) FinalizeTotal(ctx context.Context, orderID string, total decimal.Decimal, status order.Status) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET total_amount = $2, status = $3, updated_at = $4 WHERE id = $1
	`, orderID, total, string(status), time.Now().UTC())
	return err
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o          order.Order
		userID     sql.NullString
		guestEmail sql.NullString
		guestName  sql.NullString
		txnID      sql.NullString
		failReason sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, guest_email, guest_name, shipping_address, payment_method,
			total_amount, status, payment_transaction_id, payment_failure_reason,
			created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &userID, &guestEmail, &guestName, &o.ShippingAddress,
		(*string)(&o.PaymentMethod), &o.TotalAmount, (*string)(&o.Status),
		&txnID, &failReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String
	o.GuestEmail = guestEmail.String
	o.GuestName = guestName.String
	o.PaymentTransactionID = txnID.String
	o.PaymentFailureReason = failReason.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, variant_id, quantity, price_at_time_of_order,
			product_name, product_sku, product_image_url
		FROM order_items WHERE order_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item     order.OrderItem
			imageURL sql.NullString
		)
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Quantity,
			&item.PriceAtTimeOfOrder, &item.ProductName, &item.ProductSKU, &imageURL); err != nil {
			return nil, err
		}
		item.ProductImageURL = imageURL.String
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresOrderStore) ApplySettlement(ctx context.Context, id string, settlement order.Settlement) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, payment_transaction_id = $3,
			payment_failure_reason = $4, updated_at = $5
		WHERE id = $1
	`, id, string(settlement.Status), nullable(settlement.TransactionID),
		nullable(settlement.FailureReason), time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
