// Package archive keeps encoded packets in a SQLite database.
package archive

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"nmea2ubx/internal/ubx"
)

type Config struct {
	// Path is the SQLite database file.
	Path string
	// MaxRecords trims the oldest rows after each insert when > 0.
	MaxRecords int
}

// Store is a bridge sink that archives every packet it receives.
type Store struct {
	db  *gorm.DB
	cfg Config
	now func() time.Time

	mu sync.Mutex
}

// Open creates or migrates the archive database using the pure Go SQLite
// driver.
func Open(cfg Config, l *log.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	var gormLog logger.Interface
	if l != nil {
		gormLog = logger.New(l, logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		})
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", cfg.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("configure archive: %w", err)
	}
	if err := db.AutoMigrate(&PacketRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	if l != nil {
		l.Printf("archive initialized path=%s max_records=%d", cfg.Path, cfg.MaxRecords)
	}
	return &Store{db: db, cfg: cfg, now: time.Now}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	// A single writer; the bridge serializes sends anyway.
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Name() string { return "archive" }

// Send decodes and stores packet. Packets that are not valid NAV-PVT frames
// are rejected.
func (s *Store) Send(packet []byte) error {
	return s.Save(s.now(), packet)
}

func (s *Store) Save(at time.Time, packet []byte) error {
	p, err := ubx.ParseNavPVT(packet)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	rec := PacketRecord{
		ReceivedAt: at.UTC(),
		ITOW:       p.ITOW,
		Year:       p.Year,
		Month:      p.Month,
		Day:        p.Day,
		Hour:       p.Hour,
		Minute:     p.Min,
		Second:     p.Sec,
		FixType:    uint8(p.FixType),
		NumSV:      p.NumSV,
		Lat:        p.Lat,
		Lon:        p.Lon,
		HeightMM:   p.Height,
		GSpeedMMPS: p.GSpeed,
		Raw:        append([]byte(nil), packet...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	if s.cfg.MaxRecords > 0 {
		if err := s.trimLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) trimLocked() error {
	keep := s.db.Model(&PacketRecord{}).Select("id").Order("id DESC").Limit(s.cfg.MaxRecords)
	res := s.db.Where("id NOT IN (?)", keep).Delete(&PacketRecord{})
	if res.Error != nil {
		return fmt.Errorf("archive trim: %w", res.Error)
	}
	return nil
}

// Recent returns up to limit packets, newest first.
func (s *Store) Recent(limit int) ([]PacketRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []PacketRecord
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count() (int64, error) {
	var n int64
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Model(&PacketRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
