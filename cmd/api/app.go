package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acgallery/service/internal/auth"
	"github.com/acgallery/service/internal/competition"
	"github.com/acgallery/service/internal/config"
	"github.com/acgallery/service/internal/cover"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/gallery"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/storage"
	"github.com/acgallery/service/internal/thumbnail"
	"github.com/acgallery/service/internal/upload"
	"github.com/acgallery/service/internal/year"
)

// app holds the wired dependencies of one process.
type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	authSvc *auth.Service
	sweeper *upload.Sweeper

	years        *year.Handler
	competitions *competition.Handler
	photos       *photo.Handler
	uploads      *upload.Handler
	gallery      *gallery.Handler
	auth         *auth.Handler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("object storage init failed: %w", err)
	}

	// Wire dependencies: repository → service → handler
	yearRepo := year.NewRepository(pool)
	compRepo := competition.NewRepository(pool)
	photoRepo := photo.NewRepository(pool)
	covers := cover.NewResolver(photoRepo)

	yearSvc := year.NewService(yearRepo, covers, store)
	photoSvc := photo.NewService(photoRepo, store)
	compSvc := competition.NewService(compRepo, yearSvc, photoSvc, covers, store)
	uploadSvc := upload.NewService(compSvc, photoRepo, store, thumbnail.New())
	gallerySvc := gallery.NewService(yearSvc, compSvc, photoRepo, covers)
	authSvc := auth.NewService(cfg.AdminPassword, cfg.JWTSecret)

	return &app{
		cfg:     cfg,
		pool:    pool,
		authSvc: authSvc,
		sweeper: upload.NewSweeper(photoRepo, store, cfg.OrphanMaxAge),

		years:        year.NewHandler(yearSvc),
		competitions: competition.NewHandler(compSvc),
		photos:       photo.NewHandler(photoSvc),
		uploads:      upload.NewHandler(uploadSvc),
		gallery:      gallery.NewHandler(gallerySvc),
		auth:         auth.NewHandler(authSvc, cfg.IsProduction()),
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "minio":
		return storage.NewMinioStorage(ctx,
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StoragePublicBase,
			cfg.StorageUseSSL,
		)
	default:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint(),
			Region:          cfg.StorageRegion,
			AccessKeyID:     cfg.StorageAccessKey,
			SecretAccessKey: cfg.StorageSecretKey,
			Bucket:          cfg.StorageBucket,
			PublicURL:       cfg.StoragePublicBase,
		})
	}
}

func (a *app) routes() routes {
	return routes{
		health:         a.pool,
		verifier:       a.authSvc,
		adminStaticDir: a.cfg.AdminStaticDir,
		years:          a.years,
		competitions:   a.competitions,
		photos:         a.photos,
		uploads:        a.uploads,
		gallery:        a.gallery,
		auth:           a.auth,
	}
}

func (a *app) Close() {
	a.pool.Close()
}
