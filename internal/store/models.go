// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package store

import "time"

// LabelRecord is the persisted form of one port label
type LabelRecord struct {
	Type      string    `gorm:"primaryKey;size:16" json:"type"`
	Matrix    int       `gorm:"primaryKey" json:"matrix"`
	Level     int       `gorm:"primaryKey" json:"level"`
	Index     int       `gorm:"primaryKey" json:"index"`
	Text      string    `gorm:"size:64" json:"text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (LabelRecord) TableName() string {
	return "labels"
}

// SalvoRecord is the persisted form of one salvo. The crosspoint list
// is stored as a JSON column; salvos are small and always read whole.
type SalvoRecord struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64" json:"name"`
	Entries   string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (SalvoRecord) TableName() string {
	return "salvos"
}
