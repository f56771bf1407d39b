// Package sqlstore persists the asset registry in SQLite through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"memberpass/internal/assets"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
)

const dbFile = "assets.sqlite"

type Registry struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens the registry database under dataDir. An empty dataDir gives a
// private in-memory database.
func Open(dataDir string) (*Registry, error) {
	var dsn string
	if dataDir == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Join(dataDir, dbFile))
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open asset registry: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// single writer; also keeps the in-memory database alive
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&groupRecord{}, &assetRecord{}); err != nil {
		return nil, fmt.Errorf("migrate asset registry: %w", err)
	}
	return &Registry{db: db, now: time.Now}, nil
}

func (r *Registry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Registry) Health(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Registry) CreateAssetGroup(ctx context.Context, admin id.PrincipalID, name, metadataURI string) (id.AssetGroupID, error) {
	groupID := id.NewAssetGroupID()
	record := &groupRecord{
		ID:          groupID.String(),
		Admin:       admin.String(),
		Name:        name,
		MetadataURI: metadataURI,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return id.AssetGroupID{}, fmt.Errorf("create asset group: %w", err)
	}
	return groupID, nil
}

func (r *Registry) MintAsset(ctx context.Context, group id.AssetGroupID, owner id.PrincipalID, label, metadataURI string) (id.AssetID, error) {
	assetID := id.NewAssetID()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&groupRecord{}).
			Where("id = ?", group.String()).
			Update("minted", gorm.Expr("minted + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("asset group %s: %w", group, sentinel.ErrNotFound)
		}
		return tx.Create(&assetRecord{
			ID:          assetID.String(),
			GroupID:     group.String(),
			Owner:       owner.String(),
			Label:       label,
			MetadataURI: metadataURI,
			MintedAt:    r.now().UTC(),
		}).Error
	})
	if err != nil {
		return id.AssetID{}, fmt.Errorf("mint asset: %w", err)
	}
	return assetID, nil
}

func (r *Registry) BurnAsset(ctx context.Context, asset id.AssetID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record assetRecord
		if err := tx.First(&record, "id = ?", asset.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("asset %s: %w", asset, sentinel.ErrNotFound)
			}
			return err
		}
		if record.Burned {
			return nil
		}
		if err := tx.Model(&record).Update("burned", true).Error; err != nil {
			return err
		}
		return tx.Model(&groupRecord{}).
			Where("id = ? AND minted > 0", record.GroupID).
			Update("minted", gorm.Expr("minted - 1")).Error
	})
	if err != nil {
		return fmt.Errorf("burn asset: %w", err)
	}
	return nil
}

func (r *Registry) Group(ctx context.Context, group id.AssetGroupID) (*assets.Group, error) {
	var record groupRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", group.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("asset group %s: %w", group, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find asset group: %w", err)
	}
	return record.toDomain()
}

func (r *Registry) Asset(ctx context.Context, asset id.AssetID) (*assets.Asset, error) {
	var record assetRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", asset.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("asset %s: %w", asset, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return record.toDomain()
}
