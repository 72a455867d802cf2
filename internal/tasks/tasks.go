package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/metrics"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/storage"
	"greendrake/localboard/internal/utils"
)

// Task types.
const (
	TypeListingExpire = "listing:expire"
	TypeFlagReview    = "listing:flag_review"
	TypeDraftCleanup  = "listing:draft_cleanup"
	TypeImageProcess  = "image:process"
)

// Queues, highest priority first.
const (
	QueueCritical = "critical"
	QueueImages   = "images"
	QueueDefault  = "default"
)

// RedisOpt points asynq at the configured Redis.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// --- Enqueuing ---

// ITaskClient is the part of *asynq.Client the enqueuer needs.
type ITaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ListingPayload struct {
	ListingID string `json:"listing_id"`
}

type ImageTaskPayload struct {
	ListingID string `json:"listing_id"`
	S3Key     string `json:"s3_key"`
	Caption   string `json:"caption,omitempty"`
}

// Enqueuer implements services.ITaskEnqueuer on top of asynq.
type Enqueuer struct {
	client ITaskClient
	log    *zap.Logger
}

func NewEnqueuer(client ITaskClient, log *zap.Logger) *Enqueuer {
	return &Enqueuer{client: client, log: log}
}

// EnqueueFlagReview schedules a threshold check. While one is still queued
// for the listing, further requests are folded into it.
func (e *Enqueuer) EnqueueFlagReview(ctx context.Context, listingID utils.SixID) error {
	payload, err := json.Marshal(ListingPayload{ListingID: listingID.String()})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeFlagReview, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.TaskID("flag-review:"+listingID.String()),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.log.Debug("flag review already queued", zap.String("listing_id", listingID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeFlagReview, err)
	}
	return nil
}

func (e *Enqueuer) EnqueueImageProcess(ctx context.Context, listingID utils.SixID, key, caption string) error {
	payload, err := json.Marshal(ImageTaskPayload{ListingID: listingID.String(), S3Key: key, Caption: caption})
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, payload),
		asynq.Queue(QueueImages),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeImageProcess, err)
	}
	e.log.Info("image queued", zap.String("task_id", info.ID), zap.String("listing_id", listingID.String()), zap.String("key", key))
	return nil
}

// --- Processing ---

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg        *config.Config
	listings   services.IListingService
	moderation services.IModerationService
	storage    storage.IS3Storage
	log        *zap.Logger
	now        func() time.Time
}

func NewTaskProcessor(cfg *config.Config, listings services.IListingService, moderation services.IModerationService, store storage.IS3Storage, log *zap.Logger) *TaskProcessor {
	return &TaskProcessor{
		cfg:        cfg,
		listings:   listings,
		moderation: moderation,
		storage:    store,
		log:        log,
		now:        time.Now,
	}
}

// NewServer configures an asynq server. Nothing is processed until it is
// started with a mux.
func NewServer(cfg *config.Config, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Queues: map[string]int{
			QueueCritical: 6,
			QueueImages:   4,
			QueueDefault:  2,
		},
		Logger: log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Error(err),
			)
		}),
	})
}

// Mux registers the handlers for the requested worker roles.
func (p *TaskProcessor) Mux(background, images bool) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if background {
		mux.HandleFunc(TypeListingExpire, p.HandleListingExpireTask)
		mux.HandleFunc(TypeFlagReview, p.HandleFlagReviewTask)
		mux.HandleFunc(TypeDraftCleanup, p.HandleDraftCleanupTask)
	}
	if images {
		mux.HandleFunc(TypeImageProcess, p.HandleImageProcessTask)
	}
	return mux
}

// NewScheduler registers the periodic sweeps.
func NewScheduler(cfg *config.Config, log *zap.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Logger:   log.Sugar(),
		Location: time.UTC,
	})
	periodic := []struct {
		spec string
		typ  string
	}{
		{cfg.ExpirySweepCron, TypeListingExpire},
		{cfg.DraftCleanupCron, TypeDraftCleanup},
	}
	for _, job := range periodic {
		if _, err := scheduler.Register(job.spec, asynq.NewTask(job.typ, nil), asynq.Queue(QueueDefault), asynq.MaxRetry(1)); err != nil {
			return nil, fmt.Errorf("failed to schedule %s (%q): %w", job.typ, job.spec, err)
		}
		log.Info("scheduled task", zap.String("type", job.typ), zap.String("spec", job.spec))
	}
	return scheduler, nil
}

func (p *TaskProcessor) HandleListingExpireTask(ctx context.Context, t *asynq.Task) error {
	n, err := p.listings.ExpireListings(ctx, p.now())
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}
	p.log.Debug("expiry sweep done", zap.Int64("expired", n))
	return nil
}

func (p *TaskProcessor) HandleDraftCleanupTask(ctx context.Context, t *asynq.Task) error {
	result, err := p.listings.CleanupStaleDrafts(ctx, p.now(), p.cfg.StaleDraftTTL, false)
	if err != nil {
		return fmt.Errorf("draft cleanup: %w", err)
	}
	if len(result.Errors) > 0 {
		p.log.Warn("draft cleanup finished with errors", zap.Strings("errors", result.Errors))
	}
	return nil
}

func (p *TaskProcessor) HandleFlagReviewTask(ctx context.Context, t *asynq.Task) error {
	var payload ListingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal flag review payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID %q in payload: %w", payload.ListingID, asynq.SkipRetry)
	}

	flagged, err := p.moderation.ReviewFlags(ctx, listingID)
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("listing %s not found: %w", listingID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	p.log.Debug("flag review done", zap.String("listing_id", listingID.String()), zap.Bool("flagged", flagged))
	return nil
}

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// HandleImageProcessTask downloads an upload, shrinks it to fit
// ImageMaxDimension, stores it under listings/ and attaches it to the
// listing. The original upload is deleted afterwards.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID %q in payload: %w", payload.ListingID, asynq.SkipRetry)
	}
	log := p.log.With(zap.String("listing_id", payload.ListingID), zap.String("key", payload.S3Key))

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	data, err := p.storage.Download(ctx, payload.S3Key, maxSizeBytes)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.ImagesProcessed.WithLabelValues("missing").Inc()
		return fmt.Errorf("upload %s not found: %w", payload.S3Key, asynq.SkipRetry)
	case errors.Is(err, storage.ErrTooLarge):
		metrics.ImagesProcessed.WithLabelValues("rejected").Inc()
		p.discard(ctx, log, payload.S3Key)
		return fmt.Errorf("image exceeds %d MB: %w", p.cfg.ImageMaxSizeMB, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("failed to download image: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		metrics.ImagesProcessed.WithLabelValues("rejected").Inc()
		p.discard(ctx, log, payload.S3Key)
		return fmt.Errorf("unsupported or corrupt image: %v: %w", err, asynq.SkipRetry)
	}

	processedKey := storage.ProcessedKey(payload.S3Key)
	contentType := contentTypes[format]
	body := data

	limit := uint(p.cfg.ImageMaxDimension)
	bounds := img.Bounds()
	if limit > 0 && (uint(bounds.Dx()) > limit || uint(bounds.Dy()) > limit) {
		resized := resize.Thumbnail(limit, limit, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		body = buf.Bytes()
		contentType = "image/jpeg"
		processedKey = strings.TrimSuffix(processedKey, path.Ext(processedKey)) + ".jpg"
		log.Debug("image resized",
			zap.Int("from_width", bounds.Dx()),
			zap.Int("from_height", bounds.Dy()),
			zap.Int("width", resized.Bounds().Dx()),
			zap.Int("height", resized.Bounds().Dy()),
		)
	}

	if err := p.storage.Upload(ctx, processedKey, body, contentType); err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	_, err = p.listings.AddImage(ctx, listingID, processedKey, payload.Caption)
	if errors.Is(err, services.ErrNotFound) {
		metrics.ImagesProcessed.WithLabelValues("orphaned").Inc()
		p.discard(ctx, log, processedKey)
		p.discard(ctx, log, payload.S3Key)
		return fmt.Errorf("listing %s no longer accepts images: %w", listingID, asynq.SkipRetry)
	}
	if errors.Is(err, services.ErrValidation) {
		metrics.ImagesProcessed.WithLabelValues("rejected").Inc()
		p.discard(ctx, log, processedKey)
		p.discard(ctx, log, payload.S3Key)
		return fmt.Errorf("image rejected for listing %s: %v: %w", listingID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to attach processed image: %w", err)
	}

	p.discard(ctx, log, payload.S3Key)
	metrics.ImagesProcessed.WithLabelValues("ok").Inc()
	log.Info("image processed", zap.String("processed_key", processedKey), zap.String("format", format))
	return nil
}

func (p *TaskProcessor) discard(ctx context.Context, log *zap.Logger, key string) {
	if err := p.storage.Delete(ctx, key); err != nil {
		log.Warn("failed to delete object", zap.String("object", key), zap.Error(err))
	}
}
