package images

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/models"
)

// searchParallelism bounds concurrent provider calls per deck.
const searchParallelism = 3

// Emitter receives the image events produced during a search.
type Emitter func(events.GenerationEvent)

// Service runs background topic searches for decks.
type Service struct {
	provider Provider
	cache    *gocache.Cache
	cfg      *config.ImagesConfig
	logger   *slog.Logger
}

// NewService builds the image service. A nil provider disables search:
// StartSearch returns an already-completed handle.
func NewService(provider Provider, cfg *config.ImagesConfig, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle tracks one deck's background search.
type Handle struct {
	done   chan struct{}
	cancel context.CancelFunc
}

// Done closes when every topic has resolved or the search was cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops in-flight searches. Images already placed in the pending map
// stay there.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the search finishes or ctx expires.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// topicAssignment maps one derived topic to the slides that want it.
type topicAssignment struct {
	topic  string
	slides []models.SlideOutline
	index  map[string]int // slide ID -> position in the deck
}

// StartSearch derives topics from the outline and searches them in the
// background, feeding results into pending and emitting topic_images_found
// and slide_images_found along the way. Failures are soft: a failed topic
// logs a warning and contributes nothing.
func (s *Service) StartSearch(parent context.Context, outline *models.DeckOutline, pending *PendingImageMap, emit Emitter) *Handle {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.SearchTimeout)
	h := &Handle{done: make(chan struct{}), cancel: cancel}

	assignments := deriveTopics(outline)
	if s.provider == nil || len(assignments) == 0 {
		cancel()
		close(h.done)
		return h
	}

	go func() {
		defer close(h.done)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(searchParallelism)
		for _, a := range assignments {
			g.Go(func() error {
				s.searchTopic(gctx, a, pending, emit)
				return nil
			})
		}
		g.Wait() //nolint:errcheck // workers never return errors
	}()
	return h
}

func (s *Service) searchTopic(ctx context.Context, a topicAssignment, pending *PendingImageMap, emit Emitter) {
	imgs, err := s.search(ctx, a.topic)
	if err != nil {
		s.logger.Warn("image search failed", "topic", a.topic, "error", err)
		return
	}

	slideIDs := make([]string, 0, len(a.slides))
	for _, sl := range a.slides {
		slideIDs = append(slideIDs, sl.ID)
	}
	emit(events.New(events.TypeTopicImagesFound, events.TopicImagesFoundPayload{
		Topic:            a.topic,
		ImagesCount:      len(imgs),
		SlidesUsingTopic: slideIDs,
	}))
	if len(imgs) == 0 {
		return
	}

	for _, sl := range a.slides {
		pending.Put(sl.ID, imgs)
		emit(events.New(events.TypeSlideImagesFound, events.SlideImagesFoundPayload{
			SlideID:     sl.ID,
			SlideIndex:  a.index[sl.ID],
			SlideTitle:  sl.Title,
			ImagesCount: len(imgs),
			Images:      imgs,
			TopicsUsed:  []string{a.topic},
		}))
	}
}

// search consults the per-topic cache before the provider.
func (s *Service) search(ctx context.Context, topic string) ([]models.Image, error) {
	if cached, ok := s.cache.Get(topic); ok {
		return cached.([]models.Image), nil
	}
	start := time.Now()
	imgs, err := s.provider.Search(ctx, topic, s.cfg.MaxPerTopic)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("image search completed",
		"topic", topic, "count", len(imgs), "duration_ms", time.Since(start).Milliseconds())
	s.cache.Set(topic, imgs, gocache.DefaultExpiration)
	return imgs, nil
}

// deriveTopics extracts one search topic per slide from its title, then
// groups slides sharing a topic so each topic is searched once. Slides with
// data visualizations are skipped; stock photos do not help a chart.
func deriveTopics(outline *models.DeckOutline) []topicAssignment {
	index := make(map[string]int, len(outline.Slides))
	byTopic := make(map[string][]models.SlideOutline)

	for i, sl := range outline.Slides {
		index[sl.ID] = i
		if sl.ExtractedData.HasChartData() || sl.ExtractedData.HasTabularData() {
			continue
		}
		topic := topicFromTitle(sl.Title)
		if topic == "" {
			continue
		}
		byTopic[topic] = append(byTopic[topic], sl)
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	out := make([]topicAssignment, 0, len(topics))
	for _, t := range topics {
		out = append(out, topicAssignment{topic: t, slides: byTopic[t], index: index})
	}
	return out
}

// stopwords that carry no search signal in slide titles.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true, "of": true,
	"on": true, "or": true, "our": true, "the": true, "to": true, "with": true,
	"introduction": true, "overview": true, "conclusion": true, "summary": true,
	"agenda": true, "questions": true, "thanks": true, "thank": true, "you": true,
}

// topicFromTitle reduces a slide title to its significant words, at most
// three, lowercased.
func topicFromTitle(title string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,:;!?()[]\"'")
		if w == "" || stopwords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	return strings.Join(words, " ")
}
