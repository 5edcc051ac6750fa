package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
	"textcleaner_go_backend/internal/utils/hiddenchars"
)

// previewRunes is how much of the original text an offer shows the user.
const previewRunes = 200

type fileJob struct {
	sessionID string
	fileName  string
	path      string
}

// IngestionService orchestrates extraction, scanning and pricing for one
// submission and decides between an immediate result and a pending offer.
// Large files are pushed onto a bounded background queue so the request
// path stays responsive.
type IngestionService struct {
	registry  *SessionRegistry
	extractor TextExtractor
	pricing   *PricingService
	notifier  OutcomeNotifier

	syncThreshold int64
	maxFileSize   int64

	jobs      chan fileJob
	g         *errgroup.Group
	closeOnce sync.Once
}

func NewIngestionService(
	registry *SessionRegistry,
	extractor TextExtractor,
	pricing *PricingService,
	notifier OutcomeNotifier,
	syncThreshold, maxFileSize int64,
	queueDepth int,
) *IngestionService {
	return &IngestionService{
		registry:      registry,
		extractor:     extractor,
		pricing:       pricing,
		notifier:      notifier,
		syncThreshold: syncThreshold,
		maxFileSize:   maxFileSize,
		jobs:          make(chan fileJob, queueDepth),
	}
}

// Start launches numWorkers background workers. Workers run until Shutdown
// closes the queue or ctx is cancelled. Cancelling ctx stops processing but
// does not dispose of queued jobs; Shutdown must still be called to settle
// them.
func (s *IngestionService) Start(ctx context.Context, numWorkers int) {
	s.g = &errgroup.Group{}
	for w := 1; w <= numWorkers; w++ {
		w := w
		s.g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					log.Info().Int("worker", w).Msg("ingestion worker shutting down")
					return nil
				case job, ok := <-s.jobs:
					if !ok {
						return nil
					}
					s.runBackground(job)
				}
			}
		})
	}
}

// Shutdown stops intake, waits for the workers, then settles whatever is
// still buffered: every leftover job has its temporary file removed and its
// session notified with a failure outcome, so an acknowledged submission is
// never silently dropped. Callers must stop producing submissions first.
func (s *IngestionService) Shutdown() error {
	s.closeOnce.Do(func() { close(s.jobs) })
	var err error
	if s.g != nil {
		err = s.g.Wait()
	}
	for job := range s.jobs {
		_ = os.Remove(job.path)
		log.Warn().Str("session", job.sessionID).Str("file", job.fileName).
			Msg("abandoning queued file on shutdown")
		s.notifier.Notify(job.sessionID,
			s.failureOutcome(job.sessionID, errors.New("the server shut down before the file was processed")))
	}
	return err
}

// SubmitText processes inline text. Always synchronous; there is nothing to
// extract or download.
func (s *IngestionService) SubmitText(sessionID, text string) models.Outcome {
	return s.finish(sessionID, text)
}

// SubmitFile applies the size policy to a file already spooled at path:
// above the hard cap the submission is rejected before any extraction,
// above the sync ceiling it is queued for background processing and
// acknowledged immediately, otherwise it is processed inline. Ownership of
// the temporary file passes to whichever branch runs; every branch removes
// it on exit.
func (s *IngestionService) SubmitFile(ctx context.Context, sessionID, fileName string, size int64, path string) models.Outcome {
	if size > s.maxFileSize {
		_ = os.Remove(path)
		return s.failureOutcome(sessionID, apperrors.ErrFileTooLarge)
	}

	if size > s.syncThreshold {
		select {
		case s.jobs <- fileJob{sessionID: sessionID, fileName: fileName, path: path}:
			log.Info().Str("session", sessionID).Str("file", fileName).Int64("size", size).
				Msg("large file queued for background processing")
			return models.Outcome{Kind: models.OutcomeQueued, SessionID: sessionID}
		case <-ctx.Done():
			_ = os.Remove(path)
			return s.failureOutcome(sessionID, ctx.Err())
		}
	}

	return s.processFile(sessionID, fileName, path)
}

// runBackground is the worker-side wrapper: whatever happens to the job,
// the session hears about it.
func (s *IngestionService) runBackground(job fileJob) {
	outcome := s.processFile(job.sessionID, job.fileName, job.path)
	s.notifier.Notify(job.sessionID, outcome)
}

// processFile extracts and finishes one spooled file. The temporary file is
// removed on every exit path, and an unclassified panic from a collaborator
// is caught here, logged in full, and turned into a generic failure rather
// than silently dropping the unit of work.
func (s *IngestionService) processFile(sessionID, fileName, path string) (outcome models.Outcome) {
	defer func() { _ = os.Remove(path) }()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session", sessionID).Str("file", fileName).
				Msg("unhandled failure while processing file")
			outcome = s.failureOutcome(sessionID, errors.New("unexpected processing failure"))
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Str("file", fileName).Msg("reading spooled file failed")
		return s.failureOutcome(sessionID, err)
	}

	text, err := s.extractor.Extract(fileName, data)
	if err != nil {
		return s.failureOutcome(sessionID, err)
	}

	return s.finish(sessionID, text)
}

// finish runs the scan/price/offer steps shared by the text and file paths.
func (s *IngestionService) finish(sessionID, text string) models.Outcome {
	count := hiddenchars.Scan(text)
	length := utf8.RuneCountInString(text)

	if count == 0 {
		// Any new submission supersedes an unpaid offer, even one with
		// nothing to clean.
		s.registry.ClearTransaction(sessionID)
		return models.Outcome{
			Kind:      models.OutcomeClean,
			SessionID: sessionID,
			Length:    length,
		}
	}

	price := s.pricing.PriceFor(length)
	if price == 0 {
		// Below the free-cleaning floor: no offer, deliver right away.
		// A superseded priced offer is discarded, replace-wins.
		s.registry.ClearTransaction(sessionID)
		return models.Outcome{
			Kind:        models.OutcomeDelivered,
			SessionID:   sessionID,
			HiddenCount: count,
			Length:      length,
			CleanedText: hiddenchars.Clean(text),
		}
	}

	tx := models.PendingTransaction{
		OriginalText: text,
		Length:       length,
		Price:        price,
		Currency:     s.pricing.Currency(),
		HiddenCount:  count,
		State:        models.StateOffered,
		CreatedAt:    time.Now(),
	}
	if err := s.registry.PutTransaction(sessionID, tx); err != nil {
		return s.failureOutcome(sessionID, err)
	}

	preview, truncated := OfferPreview(text)
	return models.Outcome{
		Kind:        models.OutcomeOffer,
		SessionID:   sessionID,
		HiddenCount: count,
		Length:      length,
		Price:       price,
		Currency:    s.pricing.Currency(),
		Preview:     preview,
		Truncated:   truncated,
	}
}

func (s *IngestionService) failureOutcome(sessionID string, err error) models.Outcome {
	var ce *apperrors.CustomError
	if errors.As(err, &ce) {
		return models.Outcome{
			Kind:      models.OutcomeFailure,
			SessionID: sessionID,
			ErrorType: string(ce.Type),
			Message:   ce.Message,
		}
	}

	msg := err.Error()
	if runes := []rune(msg); len(runes) > 100 {
		// Truncate on a rune boundary so a multi-byte character is never
		// split into invalid UTF-8.
		msg = string(runes[:100])
	}
	return models.Outcome{
		Kind:      models.OutcomeFailure,
		SessionID: sessionID,
		ErrorType: string(apperrors.ErrorTypeInternalServerError),
		Message:   "error while processing the submission: " + msg,
	}
}

// OfferPreview returns the slice of text an offer may show before payment
// and whether anything was held back.
func OfferPreview(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text, false
	}
	return string(runes[:previewRunes]) + "...", true
}
