package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Account struct {
	Identity  string `gorm:"primaryKey;size:20"`
	Balance   int64  `gorm:"not null;default:0;check:chk_accounts_balance,balance >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TopUpRequest struct {
	ID        string `gorm:"primaryKey;size:36"`
	Identity  string `gorm:"not null;size:20;index"`
	Amount    int64  `gorm:"not null;check:chk_top_up_requests_amount,amount > 0"`
	State     string `gorm:"not null;index"`
	ProofRef  string
	CreatedAt time.Time `gorm:"index"`
	DecidedAt *time.Time
}

type LedgerEntry struct {
	ID           string `gorm:"primaryKey;size:36"`
	Identity     string `gorm:"not null;size:20;index"`
	Delta        int64  `gorm:"not null"`
	BalanceAfter int64  `gorm:"not null;check:chk_ledger_entries_balance_after,balance_after >= 0"`
	Kind         string `gorm:"not null"`
	Reference    string `gorm:"index"`
	Reason       string
	CreatedAt    time.Time `gorm:"index"`
}

type AccountDAO struct {
	db *gorm.DB
}

func NewAccountDAO(db *gorm.DB) *AccountDAO {
	return &AccountDAO{
		db: db,
	}
}

// Ensure inserts a zero-balance account unless one already exists.
func (d *AccountDAO) Ensure(ctx context.Context, identity string) error {
	account := Account{Identity: identity}

	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
}

func (d *AccountDAO) FindByIdentity(ctx context.Context, identity string) (Account, error) {
	var account Account

	result := d.db.WithContext(ctx).First(&account, "identity = ?", identity)
	if result.Error != nil {
		return Account{}, notFound(result.Error, ErrRecordNotFound)
	}

	return account, nil
}

func (d *AccountDAO) LockByIdentity(ctx context.Context, identity string) (Account, error) {
	var account Account

	result := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "identity = ?", identity)
	if result.Error != nil {
		return Account{}, notFound(result.Error, ErrRecordNotFound)
	}

	return account, nil
}

func (d *AccountDAO) UpdateBalance(ctx context.Context, identity string, balance int64) error {
	result := d.db.WithContext(ctx).Model(&Account{}).
		Where("identity = ?", identity).
		Updates(map[string]any{"balance": balance, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (d *AccountDAO) InsertEntry(ctx context.Context, entry LedgerEntry) error {
	return d.db.WithContext(ctx).Create(&entry).Error
}

func (d *AccountDAO) FindEntries(ctx context.Context, identity string) ([]LedgerEntry, error) {
	var entries []LedgerEntry

	result := d.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC, id").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

func (d *AccountDAO) InsertTopUp(ctx context.Context, req TopUpRequest) error {
	return d.db.WithContext(ctx).Create(&req).Error
}

func (d *AccountDAO) LockTopUp(ctx context.Context, id string) (TopUpRequest, error) {
	var req TopUpRequest

	result := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id)
	if result.Error != nil {
		return TopUpRequest{}, notFound(result.Error, ErrRecordNotFound)
	}

	return req, nil
}

func (d *AccountDAO) UpdateTopUp(ctx context.Context, req TopUpRequest) error {
	return d.db.WithContext(ctx).Model(&TopUpRequest{ID: req.ID}).
		Updates(map[string]any{
			"state":      req.State,
			"proof_ref":  req.ProofRef,
			"decided_at": req.DecidedAt,
		}).Error
}

func (d *AccountDAO) FindTopUps(ctx context.Context, identity string) ([]TopUpRequest, error) {
	var reqs []TopUpRequest

	result := d.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC").
		Find(&reqs)
	if result.Error != nil {
		return nil, result.Error
	}

	return reqs, nil
}

func (d *AccountDAO) FindTopUpsByState(ctx context.Context, state string) ([]TopUpRequest, error) {
	var reqs []TopUpRequest

	result := d.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at, id").
		Find(&reqs)
	if result.Error != nil {
		return nil, result.Error
	}

	return reqs, nil
}
