package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Negotiation struct {
	ID              string            `gorm:"primaryKey;size:36"`
	Buyer           string            `gorm:"not null;size:20;index"`
	Seller          string            `gorm:"not null;size:20;index"`
	Lines           []NegotiationLine `gorm:"foreignKey:NegotiationID"`
	Subtotal        int64             `gorm:"not null;check:chk_negotiations_subtotal,subtotal >= 0"`
	ShippingCost    *int64            `gorm:"check:chk_negotiations_shipping,shipping_cost >= 0"`
	Total           int64             `gorm:"not null;check:chk_negotiations_total,total >= 0"`
	Status          string            `gorm:"not null;index"`
	DeliveryAddress string            `gorm:"not null"`
	DeliveryDate    *time.Time
	DeliveryNotes   string
	Refunded        bool `gorm:"not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"index"`
	PriceSetAt      *time.Time
	ConfirmedAt     *time.Time
	DeclinedAt      *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

type NegotiationLine struct {
	ID            uint   `gorm:"primaryKey"`
	NegotiationID string `gorm:"not null;size:36;index"`
	ListingID     string `gorm:"not null;size:36"`
	Title         string `gorm:"not null"`
	Quantity      int64  `gorm:"not null;check:chk_negotiation_lines_quantity,quantity > 0"`
	UnitPrice     int64  `gorm:"not null;check:chk_negotiation_lines_unit_price,unit_price >= 0"`
}

type NegotiationMessage struct {
	ID            string `gorm:"primaryKey;size:36"`
	NegotiationID string `gorm:"not null;size:36;index"`
	Sender        string `gorm:"not null;size:20"`
	Body          string `gorm:"type:text;not null"`
	CreatedAt     time.Time
}

type NegotiationDAO struct {
	db *gorm.DB
}

func NewNegotiationDAO(db *gorm.DB) *NegotiationDAO {
	return &NegotiationDAO{
		db: db,
	}
}

func (d *NegotiationDAO) Insert(ctx context.Context, n Negotiation) error {
	return d.db.WithContext(ctx).Create(&n).Error
}

func (d *NegotiationDAO) FindByID(ctx context.Context, id string) (Negotiation, error) {
	var n Negotiation

	result := d.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&n, "id = ?", id)
	if result.Error != nil {
		return Negotiation{}, notFound(result.Error, ErrRecordNotFound)
	}

	return n, nil
}

func (d *NegotiationDAO) LockByID(ctx context.Context, id string) (Negotiation, error) {
	var n Negotiation

	result := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&n, "id = ?", id)
	if result.Error != nil {
		return Negotiation{}, notFound(result.Error, ErrRecordNotFound)
	}

	var lines []NegotiationLine
	if err := d.db.WithContext(ctx).Where("negotiation_id = ?", id).Order("id").Find(&lines).Error; err != nil {
		return Negotiation{}, err
	}
	n.Lines = lines

	return n, nil
}

// Update writes the negotiation row; lines are immutable once created.
func (d *NegotiationDAO) Update(ctx context.Context, n Negotiation) error {
	result := d.db.WithContext(ctx).Model(&Negotiation{ID: n.ID}).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(&n)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (d *NegotiationDAO) FindByParticipant(ctx context.Context, identity string) ([]Negotiation, error) {
	var ns []Negotiation

	result := d.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("buyer = ? OR seller = ?", identity, identity).
		Order("created_at DESC, id").
		Find(&ns)
	if result.Error != nil {
		return nil, result.Error
	}

	return ns, nil
}

// FindStaleIDs returns open negotiations that have not moved since before.
func (d *NegotiationDAO) FindStaleIDs(ctx context.Context, statuses []string, before time.Time) ([]string, error) {
	var ids []string

	result := d.db.WithContext(ctx).Model(&Negotiation{}).
		Where("status IN ? AND updated_at < ?", statuses, before).
		Order("updated_at, id").
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}

	return ids, nil
}

func (d *NegotiationDAO) InsertMessage(ctx context.Context, m NegotiationMessage) error {
	return d.db.WithContext(ctx).Create(&m).Error
}

func (d *NegotiationDAO) FindMessages(ctx context.Context, negotiationID string) ([]NegotiationMessage, error) {
	var msgs []NegotiationMessage

	result := d.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at, id").
		Find(&msgs)
	if result.Error != nil {
		return nil, result.Error
	}

	return msgs, nil
}
