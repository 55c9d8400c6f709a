package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"orderbridge/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded migrations not yet recorded in schema_migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		var done bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name=$1)`, name).Scan(&done); err != nil {
			return err
		}
		if done {
			continue
		}
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return err
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `external_id, order_number, line_items, total_item_count, shipping_address, shipping_lines,
	dimensions, pickup_point, shipping_method, method_overridden, shipment, is_fulfilled, fulfilled_at,
	fulfillment_id, source_created_at, created_at, updated_at`

// Upsert relies on the primary key on external_id: concurrent writers for one id
// serialize on the conflicting row.
func (p *Postgres) Upsert(ctx context.Context, o model.Order) error {
	if err := validateUpsert(o); err != nil {
		return err
	}
	o = insertUpsert(o)
	if o.LineItems == nil {
		o.LineItems = []model.LineItem{}
	}
	if o.ShippingLines == nil {
		o.ShippingLines = []model.ShippingLine{}
	}
	if o.ShippingMethod == "" {
		o.ShippingMethod = model.MethodHomeDelivery
	}
	lineItems, err := jsonArg(o.LineItems)
	if err != nil {
		return err
	}
	address, err := jsonArg(o.ShippingAddress)
	if err != nil {
		return err
	}
	shippingLines, err := jsonArg(o.ShippingLines)
	if err != nil {
		return err
	}
	// operator-owned columns start empty; only UpdateFields writes them
	_, err = p.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3::jsonb,$4,$5::jsonb,$6::jsonb,$7::jsonb,$8::jsonb,$9,$10,$11::jsonb,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (external_id) DO UPDATE SET
			order_number = EXCLUDED.order_number,
			line_items = EXCLUDED.line_items,
			total_item_count = EXCLUDED.total_item_count,
			shipping_address = EXCLUDED.shipping_address,
			shipping_lines = EXCLUDED.shipping_lines,
			shipping_method = CASE WHEN orders.method_overridden THEN orders.shipping_method ELSE EXCLUDED.shipping_method END,
			source_created_at = EXCLUDED.source_created_at,
			updated_at = EXCLUDED.updated_at`,
		o.ExternalID, o.OrderNumber, lineItems, o.TotalItemCount, address, shippingLines,
		nil, nil, string(o.ShippingMethod), false, nil,
		false, nil, "", o.SourceCreatedAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ExternalID, err)
	}
	return nil
}

func (p *Postgres) FindByExternalID(ctx context.Context, id string) (model.Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, id)
	return scanOrder(row)
}

func (p *Postgres) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, seq DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateFields(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1 FOR UPDATE`, id))
	if err != nil {
		return model.Order{}, err
	}
	if patch.Empty() {
		return o, nil
	}
	patch.Apply(&o)
	o.UpdatedAt = time.Now().UTC()
	dims, err := jsonArg(o.Dimensions)
	if err != nil {
		return model.Order{}, err
	}
	pickup, err := jsonArg(o.PickupPoint)
	if err != nil {
		return model.Order{}, err
	}
	shipment, err := jsonArg(o.Shipment)
	if err != nil {
		return model.Order{}, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE orders SET dimensions=$2::jsonb, pickup_point=$3::jsonb, shipping_method=$4,
		method_overridden=$5, shipment=$6::jsonb, is_fulfilled=$7, fulfilled_at=$8, fulfillment_id=$9, updated_at=$10
		WHERE external_id=$1`,
		id, dims, pickup, string(o.ShippingMethod), o.MethodOverridden,
		shipment, o.IsFulfilled, o.FulfilledAt, o.FulfillmentID, o.UpdatedAt)
	if err != nil {
		return model.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o                                                 model.Order
		lineItems, address, lines, dims, pickup, shipment []byte
		method                                            string
		fulfilledAt, sourceCreatedAt                      sql.NullTime
	)
	err := row.Scan(&o.ExternalID, &o.OrderNumber, &lineItems, &o.TotalItemCount, &address, &lines,
		&dims, &pickup, &method, &o.MethodOverridden, &shipment, &o.IsFulfilled, &fulfilledAt,
		&o.FulfillmentID, &sourceCreatedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	o.ShippingMethod = model.ShippingMethod(method)
	if fulfilledAt.Valid {
		t := fulfilledAt.Time.UTC()
		o.FulfilledAt = &t
	}
	if sourceCreatedAt.Valid {
		t := sourceCreatedAt.Time.UTC()
		o.SourceCreatedAt = &t
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{lineItems, &o.LineItems},
		{address, &o.ShippingAddress},
		{lines, &o.ShippingLines},
		{dims, &o.Dimensions},
		{pickup, &o.PickupPoint},
		{shipment, &o.Shipment},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return model.Order{}, fmt.Errorf("decode order %s: %w", o.ExternalID, err)
		}
	}
	return o, nil
}

// jsonArg encodes v for a JSONB parameter; nil pointers become SQL NULL.
func jsonArg(v any) (any, error) {
	switch x := v.(type) {
	case *model.Address:
		if x == nil {
			return nil, nil
		}
	case *model.Dimensions:
		if x == nil {
			return nil, nil
		}
	case *model.PickupPoint:
		if x == nil {
			return nil, nil
		}
	case *model.ShipmentResult:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return string(b), nil
}
