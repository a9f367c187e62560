// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

// Package store holds port labels and salvo definitions. The working
// copy is in-process; an optional SQLite file carries them across
// restarts. Writes are last-write-wins.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Label types
const (
	TypeSource      = "source"
	TypeDestination = "destination"
)

// LabelKey addresses one label
type LabelKey struct {
	Type   string
	Matrix int
	Level  int
	Index  int
}

// Label is one named port
type Label struct {
	Type   string `json:"type"`
	Matrix int    `json:"matrix"`
	Level  int    `json:"level"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

// SalvoEntry is one crosspoint inside a salvo
type SalvoEntry struct {
	Destination int `json:"destination"`
	Source      int `json:"source"`
	Level       int `json:"level"`
}

// Salvo is a named batch of crosspoints
type Salvo struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Entries []SalvoEntry `json:"entries"`
}

// Store is the label and salvo registry
type Store struct {
	mu     sync.RWMutex
	labels map[LabelKey]string
	salvos map[int]Salvo
	db     *gorm.DB
	logger *log.Logger
}

// Open creates a store. With a non-empty path the SQLite file is
// opened with the pure Go driver, migrated, and loaded; with an empty
// path the store is memory-only.
func Open(path string, logger *log.Logger) (*Store, error) {
	s := &Store{
		labels: make(map[LabelKey]string),
		salvos: make(map[int]Salvo),
		logger: logger,
	}

	if path == "" {
		return s, nil
	}

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: path}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	if err := db.AutoMigrate(&LabelRecord{}, &SalvoRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	s.db = db
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Printf("store loaded: %d labels, %d salvos from %s",
		len(s.labels), len(s.salvos), path)
	return s, nil
}

func (s *Store) load() error {
	var labels []LabelRecord
	if err := s.db.Find(&labels).Error; err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	for _, rec := range labels {
		key := LabelKey{Type: rec.Type, Matrix: rec.Matrix, Level: rec.Level, Index: rec.Index}
		s.labels[key] = rec.Text
	}

	var salvos []SalvoRecord
	if err := s.db.Find(&salvos).Error; err != nil {
		return fmt.Errorf("load salvos: %w", err)
	}
	for _, rec := range salvos {
		var entries []SalvoEntry
		if err := json.Unmarshal([]byte(rec.Entries), &entries); err != nil {
			s.logger.Printf("salvo %d has bad entry data, skipping: %v", rec.ID, err)
			continue
		}
		s.salvos[rec.ID] = Salvo{ID: rec.ID, Name: rec.Name, Entries: entries}
	}
	return nil
}

// Close releases the database, if any
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetLabel records a label. A write failure to the database is logged
// but never fails the caller; the in-memory copy is authoritative for
// the process lifetime.
func (s *Store) SetLabel(labelType string, matrix, level, index int, text string) (Label, error) {
	if labelType != TypeSource && labelType != TypeDestination {
		return Label{}, fmt.Errorf("unknown label type %q", labelType)
	}

	key := LabelKey{Type: labelType, Matrix: matrix, Level: level, Index: index}
	s.mu.Lock()
	s.labels[key] = text
	s.mu.Unlock()

	if s.db != nil {
		rec := LabelRecord{Type: labelType, Matrix: matrix, Level: level, Index: index, Text: text}
		if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			s.logger.Printf("label write failed: %v", err)
		}
	}

	return Label{Type: labelType, Matrix: matrix, Level: level, Index: index, Text: text}, nil
}

// GetLabel looks a label up
func (s *Store) GetLabel(labelType string, matrix, level, index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.labels[LabelKey{Type: labelType, Matrix: matrix, Level: level, Index: index}]
	return text, ok
}

// AllLabels returns every label ordered by type, matrix, level, index
func (s *Store) AllLabels() []Label {
	s.mu.RLock()
	result := make([]Label, 0, len(s.labels))
	for key, text := range s.labels {
		result = append(result, Label{
			Type: key.Type, Matrix: key.Matrix, Level: key.Level, Index: key.Index, Text: text,
		})
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Matrix != b.Matrix {
			return a.Matrix < b.Matrix
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.Index < b.Index
	})
	return result
}

// SaveSalvo records a salvo definition, replacing any prior one with
// the same id.
func (s *Store) SaveSalvo(salvo Salvo) error {
	if salvo.ID < 0 {
		return fmt.Errorf("salvo id %d must not be negative", salvo.ID)
	}

	s.mu.Lock()
	s.salvos[salvo.ID] = salvo
	s.mu.Unlock()

	if s.db != nil {
		entries, err := json.Marshal(salvo.Entries)
		if err != nil {
			return fmt.Errorf("encode salvo entries: %w", err)
		}
		rec := SalvoRecord{ID: salvo.ID, Name: salvo.Name, Entries: string(entries)}
		if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			s.logger.Printf("salvo write failed: %v", err)
		}
	}
	return nil
}

// GetSalvo looks a salvo up by id
func (s *Store) GetSalvo(id int) (Salvo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	salvo, ok := s.salvos[id]
	return salvo, ok
}

// AllSalvos returns every salvo ordered by id
func (s *Store) AllSalvos() []Salvo {
	s.mu.RLock()
	result := make([]Salvo, 0, len(s.salvos))
	for _, salvo := range s.salvos {
		result = append(result, salvo)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
