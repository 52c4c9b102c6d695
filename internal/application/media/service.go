// Package media moves flower images into object storage and issues upload URLs.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
	"time"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore is the bucket flower images are kept in
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	GenerateUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, time.Time, error)
	PublicURL(key string) string
}

// Downloader fetches an image from where it currently lives
type Downloader interface {
	Download(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

const migratePageSize = 50

var extensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// Service handles image storage for the catalog
type Service struct {
	flowers        catalog.FlowerRepository
	scope          appshared.TransactionScope
	store          ObjectStore
	downloader     Downloader
	publicBaseURL  string
	prefix         string
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a media service. publicBaseURL marks images that are
// already migrated; prefix is prepended to every object key.
func NewService(
	flowers catalog.FlowerRepository,
	scope appshared.TransactionScope,
	store ObjectStore,
	downloader Downloader,
	publicBaseURL, prefix string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		flowers:       flowers,
		scope:         scope,
		store:         store,
		downloader:    downloader,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		prefix:        strings.Trim(prefix, "/"),
		logger:        logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RequestUpload issues a presigned PUT for a new flower image
func (s *Service) RequestUpload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := extensions[contentType]
	if !ok {
		return nil, shared.NewDomainError("INVALID_CONTENT_TYPE", "Only JPEG, PNG, WebP, GIF, AVIF and SVG images are accepted")
	}

	key := s.key("uploads", uuid.NewString()+ext)
	uploadURL, expiresAt, err := s.store.GenerateUploadURL(ctx, key, contentType, 0)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: s.store.PublicURL(key),
		ExpiresAt: expiresAt,
	}, nil
}

// IsMigrated reports whether an image URL already points at the bucket
func (s *Service) IsMigrated(imageURL string) bool {
	if s.publicBaseURL == "" {
		return false
	}
	return imageURL == s.publicBaseURL || strings.HasPrefix(imageURL, s.publicBaseURL+"/")
}

// MigrateImages copies every external flower image into the bucket and
// rewrites the flower's image list. Failed images keep their old URL and are
// listed in the report. With DryRun nothing is downloaded or written.
func (s *Service) MigrateImages(ctx context.Context, opts MigrateOptions) (*MigrateReport, error) {
	report := &MigrateReport{DryRun: opts.DryRun}

	for page := 1; ; page++ {
		flowers, total, err := s.flowers.FindAll(ctx, catalog.FlowerFilter{
			Filter: shared.Filter{Page: page, PageSize: migratePageSize, OrderBy: "created_at", OrderDir: "asc"},
		})
		if err != nil {
			return report, err
		}
		for i := range flowers {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := s.migrateFlower(ctx, &flowers[i], opts, report); err != nil {
				return report, err
			}
		}
		if len(flowers) == 0 || int64(page*migratePageSize) >= total {
			break
		}
	}

	s.logger.Info("image migration finished",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("flowers", report.Flowers),
		zap.Int("images", report.Images),
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func (s *Service) migrateFlower(ctx context.Context, f *catalog.Flower, opts MigrateOptions, report *MigrateReport) error {
	report.Flowers++
	rewritten := make(map[string]string)
	for _, img := range f.Images {
		report.Images++
		if img == "" || s.IsMigrated(img) {
			report.Skipped++
			continue
		}
		if opts.DryRun {
			report.Migrated++
			s.logger.Info("would migrate image", zap.String("flower", f.DocumentID), zap.String("url", img))
			continue
		}
		newURL, err := s.copyImage(ctx, f, img)
		if err != nil {
			report.Failures = append(report.Failures, ImageFailure{FlowerID: f.DocumentID, URL: img, Error: err.Error()})
			s.logger.Warn("image migration failed", zap.String("flower", f.DocumentID), zap.String("url", img), zap.Error(err))
			continue
		}
		rewritten[img] = newURL
		report.Migrated++
	}
	if len(rewritten) == 0 {
		return nil
	}

	var saved *catalog.Flower
	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		current, err := repos.Flowers().FindByID(ctx, f.ID)
		if err != nil {
			return err
		}
		images := make([]string, len(current.Images))
		for i, img := range current.Images {
			if to, ok := rewritten[img]; ok {
				img = to
			}
			images[i] = img
		}
		current.ApplyDetails(catalog.FlowerDetails{Images: images})
		current.MarkUpdated()
		if err := repos.Flowers().Save(ctx, current); err != nil {
			return err
		}
		saved = current
		return nil
	})
	if err != nil {
		return err
	}
	report.UpdatedFlowers++
	appshared.PublishEvents(ctx, s.eventPublisher, saved)
	return nil
}

// copyImage uploads one image under a content-addressed key, so a rerun
// after a partial failure does not upload the same bytes twice
func (s *Service) copyImage(ctx context.Context, f *catalog.Flower, rawURL string) (string, error) {
	data, contentType, err := s.downloader.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	key := s.key(f.DocumentID, hex.EncodeToString(sum[:12])+extensionFor(contentType, rawURL))

	exists, err := s.store.ObjectExists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := s.store.Upload(ctx, key, data, contentType); err != nil {
			return "", err
		}
	}
	return s.store.PublicURL(key), nil
}

func (s *Service) key(parts ...string) string {
	if s.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{s.prefix}, parts...)...)
}

func extensionFor(contentType, rawURL string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); len(ext) > 1 && len(ext) <= 5 {
			return ext
		}
	}
	return ""
}
