package store

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type productRow struct {
	ID        string          `gorm:"primaryKey"`
	Name      string          `gorm:"not null;index"`
	Category  string          `gorm:"not null;default:'';index"`
	Stock     int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productRow) TableName() string { return "products" }

func (r productRow) toDomain() product.Product {
	return product.Product{
		ID:        r.ID,
		Name:      r.Name,
		Category:  r.Category,
		Stock:     r.Stock,
		Price:     r.Price,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type auditRow struct {
	ID           string    `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"index"`
	ActorEmail   string
	Action       string `gorm:"not null"`
	ProductName  string
	AffectedRows *int
	Detail       string
}

func (auditRow) TableName() string { return "audit_log" }

type profileRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:vendor"`
	IsActive     bool
	Status       string `gorm:"not null;default:pending;index"`
	CreatedAt    time.Time
}

func (profileRow) TableName() string { return "profiles" }

func (r profileRow) toDomain() *profile.Profile {
	return &profile.Profile{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         profile.Role(r.Role),
		IsActive:     r.IsActive,
		Status:       profile.Status(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

type sessionRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
	IPAddress string
	UserAgent string
	RevokedAt *time.Time
}

func (sessionRow) TableName() string { return "sessions" }

// OpenSQLite opens (creating if needed) a SQLite database and migrates the
// schema. Set DB_DEBUG=1 to log SQL.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&profileRow{}, &sessionRow{}, &productRow{}, &auditRow{})
}

// GormGateway implements gateway.Gateway with gorm. SQLite has no change
// feed, so writes are announced through the publisher when one is set.
type GormGateway struct {
	db        *gorm.DB
	publisher gateway.ChangePublisher
}

func NewGormGateway(db *gorm.DB, publisher gateway.ChangePublisher) *GormGateway {
	return &GormGateway{db: db, publisher: publisher}
}

// ============================================
// Sessions
// ============================================

func (g *GormGateway) CreateSession(ctx context.Context, s gateway.Session) error {
	return g.db.WithContext(ctx).Create(&sessionRow{
		ID:        s.ID,
		UserID:    s.UserID,
		Email:     s.Email,
		ExpiresAt: s.ExpiresAt.UTC(),
		CreatedAt: s.CreatedAt.UTC(),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
	}).Error
}

func (g *GormGateway) GetSession(ctx context.Context, id string) (*gateway.Session, error) {
	var row sessionRow
	err := g.db.WithContext(ctx).
		Where("id = ? AND revoked_at IS NULL AND expires_at > ?", id, time.Now().UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gateway.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		Email:     row.Email,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		IPAddress: row.IPAddress,
		UserAgent: row.UserAgent,
	}, nil
}

func (g *GormGateway) SignOut(ctx context.Context, sessionID string) error {
	return g.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", time.Now().UTC()).Error
}

// ============================================
// Profiles
// ============================================

func (g *GormGateway) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	return g.findProfile(ctx, "id = ?", userID)
}

func (g *GormGateway) GetProfileByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	return g.findProfile(ctx, "email = ?", email)
}

func (g *GormGateway) findProfile(ctx context.Context, where string, arg any) (*profile.Profile, error) {
	var row profileRow
	err := g.db.WithContext(ctx).Where(where, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, profile.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (g *GormGateway) CreateProfile(ctx context.Context, p profile.Profile) error {
	err := g.db.WithContext(ctx).Create(&profileRow{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Role:         string(p.EffectiveRole()),
		IsActive:     p.IsActive,
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt.UTC(),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return profile.ErrEmailTaken
	}
	return err
}

func (g *GormGateway) ListProfilesByStatus(ctx context.Context, status profile.Status) ([]profile.Profile, error) {
	var rows []profileRow
	if err := g.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

func (g *GormGateway) SetProfileApproval(ctx context.Context, userID string, a profile.Approval) error {
	res := g.db.WithContext(ctx).Model(&profileRow{}).Where("id = ?", userID).
		Updates(map[string]any{"status": string(a.Status), "is_active": a.IsActive})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

// ============================================
// Products
// ============================================

func (g *GormGateway) ListProducts(ctx context.Context) ([]product.Product, error) {
	var rows []productRow
	if err := g.db.WithContext(ctx).Order("name COLLATE NOCASE ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *GormGateway) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var row productRow
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

func (g *GormGateway) CreateProduct(ctx context.Context, d product.Draft) (*product.Product, error) {
	now := time.Now().UTC()
	row := productRow{
		ID:        uuid.New().String(),
		Name:      d.Name,
		Category:  d.Category,
		Stock:     d.Stock,
		Price:     d.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	g.announce(ctx, gateway.OpInsert, row.ID)
	p := row.toDomain()
	return &p, nil
}

func (g *GormGateway) UpdateProduct(ctx context.Context, id string, patch product.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	res := g.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id).Updates(patchColumns(patch))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gateway.ErrNotFound
	}

	g.announce(ctx, gateway.OpUpdate, id)
	return nil
}

func (g *GormGateway) UpdateProductsByCategory(ctx context.Context, category string, patch product.Patch) (int, error) {
	if patch.IsEmpty() {
		return 0, nil
	}
	res := g.db.WithContext(ctx).Model(&productRow{}).Where("category = ?", category).Updates(patchColumns(patch))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		g.announce(ctx, gateway.OpUpdate, "")
	}
	return int(res.RowsAffected), nil
}

func (g *GormGateway) DeleteProduct(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&productRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gateway.ErrNotFound
	}

	g.announce(ctx, gateway.OpDelete, id)
	return nil
}

func (g *GormGateway) CountProducts(ctx context.Context, q product.Query) (int, error) {
	var n int64
	tx := g.db.WithContext(ctx).Model(&productRow{})
	if q.Category != nil {
		tx = tx.Where("category = ?", *q.Category)
	}
	if err := tx.Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func patchColumns(patch product.Patch) map[string]any {
	cols := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Category != nil {
		cols["category"] = *patch.Category
	}
	if patch.Stock != nil {
		cols["stock"] = *patch.Stock
	}
	if patch.Price != nil {
		cols["price"] = *patch.Price
	}
	return cols
}

// ============================================
// Audit log
// ============================================

func (g *GormGateway) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return g.db.WithContext(ctx).Create(&auditRow{
		ID:           e.ID,
		CreatedAt:    e.Timestamp.UTC(),
		ActorEmail:   e.ActorEmail,
		Action:       string(e.Action),
		ProductName:  e.ProductName,
		AffectedRows: e.AffectedRows,
		Detail:       e.Detail,
	}).Error
}

func (g *GormGateway) ListAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	var rows []auditRow
	if err := g.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, audit.Entry{
			ID:           r.ID,
			Timestamp:    r.CreatedAt,
			ActorEmail:   r.ActorEmail,
			Action:       audit.Action(r.Action),
			ProductName:  r.ProductName,
			AffectedRows: r.AffectedRows,
			Detail:       r.Detail,
		})
	}
	return out, nil
}

func (g *GormGateway) announce(ctx context.Context, op gateway.ChangeOp, id string) {
	if g.publisher == nil {
		return
	}
	c := gateway.Change{Table: gateway.ProductsTable, Op: op, RowID: id, Timestamp: time.Now().UTC()}
	if err := g.publisher.PublishChange(ctx, c); err != nil {
		log.Printf("[Store] Failed to publish %s %s: %v", op, id, err)
	}
}
