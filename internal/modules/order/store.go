// README: Order store and status event log backed by PostgreSQL.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordertrack/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const snapshotColumns = `
        id, order_number, customer_name, customer_email, customer_phone,
        order_type, delivery_type, delivery_address, status,
        current_status_message, estimated_delivery_time, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *Snapshot) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO orders (
            id, order_number, customer_name, customer_email, customer_phone,
            order_type, delivery_type, delivery_address, status,
            current_status_message, estimated_delivery_time, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11, $12, $13
        )`,
		string(o.ID),
		o.OrderNumber,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		string(o.OrderType),
		string(o.DeliveryType),
		o.DeliveryAddress,
		string(o.Status),
		o.CurrentStatusMessage,
		o.EstimatedDeliveryTime,
		o.CreatedAt,
		o.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Snapshot, error) {
	row := s.db.QueryRow(ctx, `SELECT`+snapshotColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	events, err := s.eventsFor(ctx, []types.ID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Events = events[o.ID]
	return o, nil
}

// Update applies p only while the row still holds p.ExpectedStatus.
func (s *Store) Update(ctx context.Context, id types.ID, p Patch) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            current_status_message = $2,
            estimated_delivery_time = $3,
            updated_at = $4
        WHERE id = $5 AND ($6::text = '' OR status = $6::text)`,
		string(p.Status),
		p.CurrentStatusMessage,
		p.EstimatedDeliveryTime,
		p.UpdatedAt,
		string(id),
		string(p.ExpectedStatus),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	return nil
}

func (s *Store) Append(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_status_events (
            id, order_id, status, message, occurred_at, estimated_time, location, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID,
		string(e.OrderID),
		string(e.Status),
		e.Message,
		e.Timestamp,
		e.EstimatedTime,
		e.Location,
		e.Metadata,
	)
	return err
}

func (s *Store) FindByContact(ctx context.Context, q ContactQuery) ([]Snapshot, error) {
	rows, err := s.db.Query(ctx, `
        WITH o AS (
            SELECT`+snapshotColumns+`,
                   regexp_replace(customer_phone, '[^0-9]', '', 'g') AS phone_digits
            FROM orders
        )
        SELECT`+snapshotColumns+`
        FROM o
        WHERE (
                ($1::text <> '' AND lower(trim(customer_email)) = $1::text)
             OR ($2::text <> '' AND length(phone_digits) >= 7
                 AND (phone_digits LIKE '%' || $2::text OR $2::text LIKE '%' || phone_digits))
        )
          AND ($3::text = '' OR strpos(lower(order_number), lower($3::text)) > 0)
        ORDER BY created_at DESC, id DESC`,
		q.Email, q.PhoneDigits, q.OrderNumber,
	)
	if err != nil {
		return nil, err
	}
	orders, err := collectSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachEvents(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// List returns one page of the orders matching f and the size of the whole match. Events are
// not loaded; dashboards fetch a single order for its timeline.
func (s *Store) List(ctx context.Context, f Filter) ([]Snapshot, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.db.Query(ctx, `SELECT`+snapshotColumns+` FROM orders`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	orders, err := collectSnapshots(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int, len(AllStatuses))
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[Status(st)] = n
	}
	return counts, rows.Err()
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+"::text[])")
	}
	if f.From != nil {
		conds = append(conds, "created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "created_at < "+arg(*f.To))
	}
	if f.OrderType != "" {
		conds = append(conds, "order_type = "+arg(string(f.OrderType)))
	}
	if f.DeliveryType != "" {
		conds = append(conds, "delivery_type = "+arg(string(f.DeliveryType)))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, "(order_number ILIKE "+p+" OR customer_name ILIKE "+p+
			" OR customer_email ILIKE "+p+" OR customer_phone ILIKE "+p+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}

func (s *Store) attachEvents(ctx context.Context, orders []Snapshot) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]types.ID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	events, err := s.eventsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Events = events[orders[i].ID]
	}
	return nil
}

func (s *Store) eventsFor(ctx context.Context, ids []types.ID) (map[types.ID][]Event, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, status, message, occurred_at, estimated_time, location, metadata
        FROM order_status_events
        WHERE order_id = ANY($1::text[])
        ORDER BY occurred_at ASC, seq ASC`, raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID][]Event, len(ids))
	for rows.Next() {
		var e Event
		var orderID, status string
		if err := rows.Scan(&e.ID, &orderID, &status, &e.Message, &e.Timestamp, &e.EstimatedTime, &e.Location, &e.Metadata); err != nil {
			return nil, err
		}
		e.OrderID = types.ID(orderID)
		e.Status = Status(status)
		e.Timestamp = e.Timestamp.UTC()
		out[e.OrderID] = append(out[e.OrderID], e)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var o Snapshot
	var id, orderType, deliveryType, status string
	err := row.Scan(
		&id, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&orderType, &deliveryType, &o.DeliveryAddress, &status,
		&o.CurrentStatusMessage, &o.EstimatedDeliveryTime, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = types.ID(id)
	o.OrderType = OrderType(orderType)
	o.DeliveryType = DeliveryType(deliveryType)
	o.Status = Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.EstimatedDeliveryTime = utcPtr(o.EstimatedDeliveryTime)
	return &o, nil
}

func collectSnapshots(rows pgx.Rows) ([]Snapshot, error) {
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		o, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
