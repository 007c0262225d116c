package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gateway"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresGateway implements gateway.Gateway on PostgreSQL. When a publisher
// is set, every product write is also announced through it.
type PostgresGateway struct {
	db        *sql.DB
	publisher gateway.ChangePublisher
}

func NewPostgresGateway(db *sql.DB, publisher gateway.ChangePublisher) *PostgresGateway {
	return &PostgresGateway{db: db, publisher: publisher}
}

// ConnectPostgres opens and pings a connection pool
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// ============================================
// Sessions
// ============================================

func (g *PostgresGateway) CreateSession(ctx context.Context, s gateway.Session) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, expires_at, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.Email, s.ExpiresAt, s.CreatedAt, s.IPAddress, s.UserAgent)
	return err
}

func (g *PostgresGateway) GetSession(ctx context.Context, id string) (*gateway.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var s gateway.Session
	err := g.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, expires_at, created_at, ip_address, user_agent
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`, id).Scan(&s.ID, &s.UserID, &s.Email, &s.ExpiresAt, &s.CreatedAt, &s.IPAddress, &s.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *PostgresGateway) SignOut(ctx context.Context, sessionID string) error {
	_, err := g.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL",
		sessionID,
	)
	return err
}

// ============================================
// Profiles
// ============================================

const profileColumns = "id, email, password_hash, role, is_active, status, created_at"

func scanProfile(row interface{ Scan(...any) error }) (*profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.IsActive, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *PostgresGateway) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	row := g.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", userID)
	return scanProfile(row)
}

func (g *PostgresGateway) GetProfileByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	row := g.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE email = $1", email)
	return scanProfile(row)
}

func (g *PostgresGateway) CreateProfile(ctx context.Context, p profile.Profile) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, password_hash, role, is_active, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Email, p.PasswordHash, p.EffectiveRole(), p.IsActive, p.Status, p.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return profile.ErrEmailTaken
	}
	return err
}

func (g *PostgresGateway) ListProfilesByStatus(ctx context.Context, status profile.Status) ([]profile.Profile, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE status = $1 ORDER BY created_at ASC",
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]profile.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) SetProfileApproval(ctx context.Context, userID string, a profile.Approval) error {
	res, err := g.db.ExecContext(ctx,
		"UPDATE profiles SET status = $1, is_active = $2 WHERE id = $3",
		a.Status, a.IsActive, userID,
	)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// ============================================
// Products
// ============================================

const productColumns = "id, name, category, stock, price, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Stock, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *PostgresGateway) ListProducts(ctx context.Context) ([]product.Product, error) {
	rows, err := g.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]product.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, gateway.ErrNotFound
	}
	row := g.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (g *PostgresGateway) CreateProduct(ctx context.Context, d product.Draft) (*product.Product, error) {
	now := time.Now().UTC()
	p := product.Product{
		ID:        uuid.New().String(),
		Name:      d.Name,
		Category:  d.Category,
		Stock:     d.Stock,
		Price:     d.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, stock, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Category, p.Stock, p.Price, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	g.announce(ctx, gateway.OpInsert, p.ID)
	return &p, nil
}

func (g *PostgresGateway) UpdateProduct(ctx context.Context, id string, patch product.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return gateway.ErrNotFound
	}

	set, args := patchClause(patch)
	args = append(args, id)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d", set, len(args))

	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := requireRows(res); err != nil {
		return err
	}

	g.announce(ctx, gateway.OpUpdate, id)
	return nil
}

func (g *PostgresGateway) UpdateProductsByCategory(ctx context.Context, category string, patch product.Patch) (int, error) {
	if patch.IsEmpty() {
		return 0, nil
	}

	set, args := patchClause(patch)
	args = append(args, category)
	query := fmt.Sprintf("UPDATE products SET %s WHERE category = $%d", set, len(args))

	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		g.announce(ctx, gateway.OpUpdate, "")
	}
	return int(n), nil
}

func (g *PostgresGateway) DeleteProduct(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return gateway.ErrNotFound
	}
	res, err := g.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if err := requireRows(res); err != nil {
		return err
	}

	g.announce(ctx, gateway.OpDelete, id)
	return nil
}

func (g *PostgresGateway) CountProducts(ctx context.Context, q product.Query) (int, error) {
	var n int
	var err error
	if q.Category == nil {
		err = g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	} else {
		err = g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE category = $1", *q.Category).Scan(&n)
	}
	return n, err
}

// patchClause renders the SET list for the fields present in patch, always
// bumping updated_at. Placeholders start at $1.
func patchClause(patch product.Patch) (string, []any) {
	var cols []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	add("updated_at", time.Now().UTC())

	return strings.Join(cols, ", "), args
}

// ============================================
// Audit log
// ============================================

func (g *PostgresGateway) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, created_at, actor_email, action, product_name, affected_rows, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Timestamp, e.ActorEmail, e.Action, e.ProductName, e.AffectedRows, e.Detail)
	return err
}

func (g *PostgresGateway) ListAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, created_at, actor_email, action, product_name, affected_rows, detail
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0, limit)
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorEmail, &e.Action, &e.ProductName, &e.AffectedRows, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ============================================
// Helpers
// ============================================

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

func (g *PostgresGateway) announce(ctx context.Context, op gateway.ChangeOp, id string) {
	if g.publisher == nil {
		return
	}
	c := gateway.Change{Table: gateway.ProductsTable, Op: op, RowID: id, Timestamp: time.Now().UTC()}
	if err := g.publisher.PublishChange(ctx, c); err != nil {
		log.Printf("[Store] Failed to publish %s %s: %v", op, id, err)
	}
}
