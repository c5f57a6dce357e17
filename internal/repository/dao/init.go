package dao

import "gorm.io/gorm"

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Account{},
		&TopUpRequest{},
		&LedgerEntry{},
		&Listing{},
		&Batch{},
		&BatchMember{},
		&Negotiation{},
		&NegotiationLine{},
		&NegotiationMessage{},
	)
}
