package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/images"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/media"
	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/snapshot"
	"github.com/decksmith/decksmith/pkg/store"
)

// Emitter delivers one generation event to the run's stream.
type Emitter func(events.GenerationEvent)

var (
	// ErrEmptyOutline rejects composition requests without slides.
	ErrEmptyOutline = errors.New("outline has no slides")
	// ErrInvalidOutline rejects outlines missing required fields.
	ErrInvalidOutline = errors.New("invalid outline")
)

// validateOutline gates admission: a composable outline has a deck title and
// a title plus content for every slide.
func validateOutline(o *models.DeckOutline) error {
	if o == nil || len(o.Slides) == 0 {
		return ErrEmptyOutline
	}
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("%w: deck title is required", ErrInvalidOutline)
	}
	for i, s := range o.Slides {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: slide %d has no id", ErrInvalidOutline, i)
		}
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: slide %d is missing a title", ErrInvalidOutline, i)
		}
		if strings.TrimSpace(s.Content) == "" {
			return fmt.Errorf("%w: slide %d is missing content", ErrInvalidOutline, i)
		}
	}
	return nil
}

// Request asks for one deck composition.
type Request struct {
	// DeckID identifies the deck; empty means a fresh UUID.
	DeckID string
	// UserID attributes the run for per-user concurrency limits. Optional.
	UserID string
	// Outline is the structured plan to compose.
	Outline *models.DeckOutline
	// Overrides adjusts per-run behavior on top of the configured defaults.
	Overrides *Overrides
}

// Overrides are per-request knobs layered over ComposeConfig. Nil fields
// keep the configured value.
type Overrides struct {
	MaxParallel        *int
	DelayBetweenSlides *time.Duration
	AsyncImages        *bool
	PrefetchImages     *bool
}

// options is the resolved per-run behavior.
type options struct {
	maxParallel        int
	slideTimeout       time.Duration
	delayBetweenSlides time.Duration
	asyncImages        bool
	prefetchImages     bool
}

func (o *Orchestrator) resolveOptions(ov *Overrides) options {
	opts := options{
		maxParallel:        o.cfg.MaxParallel,
		slideTimeout:       o.cfg.SlideTimeout,
		delayBetweenSlides: o.cfg.DelayBetweenSlides,
		asyncImages:        o.cfg.AsyncImagesEnabled(),
		prefetchImages:     o.cfg.PrefetchImages,
	}
	if ov == nil {
		return opts
	}
	if ov.MaxParallel != nil && *ov.MaxParallel > 0 {
		opts.maxParallel = *ov.MaxParallel
	}
	if ov.DelayBetweenSlides != nil {
		opts.delayBetweenSlides = *ov.DelayBetweenSlides
	}
	if ov.AsyncImages != nil {
		opts.asyncImages = *ov.AsyncImages
	}
	if ov.PrefetchImages != nil {
		opts.prefetchImages = *ov.PrefetchImages
	}
	return opts
}

// Run is one live composition. The caller consumes Events until it closes;
// Cancel stops the run (used by the API layer when a client disconnects
// without detaching).
type Run struct {
	GenerationID string
	DeckID       string

	events chan events.GenerationEvent
	done   chan struct{}
	cancel context.CancelFunc
}

// Events is the run's event stream. Closed after the end event.
func (r *Run) Events() <-chan events.GenerationEvent { return r.events }

// Done closes when the run has fully settled (stream closed, locks released).
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel aborts the run. In-flight slides stop at the next context check.
func (r *Run) Cancel() { r.cancel() }

// Orchestrator drives whole-deck composition: phase sequencing, slide
// fan-out under concurrency limits, event emission, and pause/resume
// bookkeeping.
type Orchestrator struct {
	cfg       *config.ComposeConfig
	themes    *ThemeGenerator
	slides    *SlideGenerator
	media     *media.Processor
	images    *images.Service
	store     store.Store
	limits    *limits.Manager
	snapshots *snapshot.Manager
	bus       *events.Bus
	conns     *events.ConnectionManager
	logger    *slog.Logger
}

// NewOrchestrator wires the orchestrator. images, conns, and bus may be nil
// when the corresponding surface is disabled.
func NewOrchestrator(
	cfg *config.ComposeConfig,
	themes *ThemeGenerator,
	slides *SlideGenerator,
	mediaProc *media.Processor,
	imageSvc *images.Service,
	st store.Store,
	lim *limits.Manager,
	snaps *snapshot.Manager,
	bus *events.Bus,
	conns *events.ConnectionManager,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		themes:    themes,
		slides:    slides,
		media:     mediaProc,
		images:    imageSvc,
		store:     st,
		limits:    lim,
		snapshots: snaps,
		bus:       bus,
		conns:     conns,
		logger:    logger,
	}
}

// Compose starts a new deck composition and returns its live run. The
// returned error covers admission only (busy deck, bad request); generation
// failures arrive as events. The run outlives the caller's context: client
// disconnects are handled by the API layer via Run.Cancel.
func (o *Orchestrator) Compose(ctx context.Context, req Request) (*Run, error) {
	if err := validateOutline(req.Outline); err != nil {
		return nil, err
	}
	deckID := req.DeckID
	if deckID == "" {
		deckID = uuid.NewString()
	}

	lock, err := o.limits.AcquireDeckLock(deckID)
	if err != nil {
		return nil, err
	}

	generationID := uuid.NewString()
	opts := make(map[string]any)
	if req.UserID != "" {
		opts["user_id"] = req.UserID
	}
	state := models.NewGenerationState(generationID, deckID, req.Outline, opts)

	run, runCtx, err := o.admit(ctx, state, lock)
	if err != nil {
		return nil, err
	}

	go o.execute(runCtx, run, state, lock, req.UserID, o.resolveOptions(req.Overrides), false)
	return run, nil
}

// Resume continues a paused generation: completed and skipped slides stay
// settled, only pending slides regenerate.
func (o *Orchestrator) Resume(ctx context.Context, generationID string) (*Run, error) {
	state, err := o.snapshots.ResumeContext(generationID)
	if err != nil {
		return nil, err
	}

	lock, err := o.limits.AcquireDeckLock(state.DeckID)
	if err != nil {
		return nil, err
	}

	userID, _ := state.Options["user_id"].(string)
	run, runCtx, err := o.admit(ctx, state, lock)
	if err != nil {
		return nil, err
	}

	go o.execute(runCtx, run, state, lock, userID, o.resolveOptions(nil), true)
	return run, nil
}

// Pause snapshots and stops a live generation.
func (o *Orchestrator) Pause(generationID string) error {
	return o.snapshots.Pause(generationID)
}

// Cancel aborts a live generation without leaving a resumable snapshot.
func (o *Orchestrator) Cancel(generationID string) error {
	return o.snapshots.Cancel(generationID)
}

// admit registers the run with the snapshot manager and builds its event
// plumbing. The run's context is detached from the caller's: only
// Run.Cancel, Pause, or Cancel stop it.
func (o *Orchestrator) admit(ctx context.Context, state *models.GenerationState, lock *limits.DeckLock) (*Run, context.Context, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := o.snapshots.Register(state, cancel); err != nil {
		cancel()
		lock.Release()
		return nil, nil, err
	}
	run := &Run{
		GenerationID: state.GenerationID,
		DeckID:       state.DeckID,
		events:       make(chan events.GenerationEvent, 256),
		done:         make(chan struct{}),
		cancel:       cancel,
	}
	return run, runCtx, nil
}

// sink fans one emitted event out to the run channel, connected WebSocket
// clients, and the in-process bus. The run channel never blocks emission: a
// consumer that stopped reading loses progress events, not the run.
func (o *Orchestrator) sink(runCtx context.Context, run *Run, forward events.Handler) func(events.GenerationEvent) {
	return func(ev events.GenerationEvent) {
		select {
		case run.events <- ev:
		default:
			o.logger.Debug("run event channel full, dropping event",
				"deck_id", run.DeckID, "type", ev.Type)
		}
		if forward != nil {
			forward(ev)
		}
		if o.bus != nil {
			o.bus.Publish(runCtx, ev)
		}
	}
}

// execute runs all phases of one composition. It owns cleanup: emitter
// flush, stream close, snapshot unregister, deck lock release.
func (o *Orchestrator) execute(ctx context.Context, run *Run, state *models.GenerationState, lock *limits.DeckLock, userID string, opts options, resumed bool) {
	var forward events.Handler
	if o.conns != nil {
		forward = o.conns.Forward(run.DeckID)
	}
	throttled := events.NewThrottledEmitter(o.sink(ctx, run, forward), o.cfg.MinEmitInterval)
	emit := Emitter(throttled.Emit)

	defer func() {
		throttled.Close()
		close(run.events)
		o.snapshots.Unregister(run.GenerationID)
		lock.Release()
		close(run.done)
	}()

	start := time.Now()
	o.logger.Info("composition started",
		"deck_id", run.DeckID, "generation_id", run.GenerationID,
		"slides", len(state.Outline.Slides), "resumed", resumed)

	deck, err := o.initialize(ctx, state, resumed, emit)
	if err != nil {
		o.finishFailed(ctx, state, emit, err)
		return
	}

	theme, err := o.themePhase(ctx, state, deck, emit)
	if err != nil {
		o.finishFailed(ctx, state, emit, err)
		return
	}

	mediaBySlide := o.mediaPhase(ctx, state, emit)

	pending := images.NewPendingImageMap()
	contexts := o.buildContexts(state, theme, mediaBySlide, userID)

	var imageHandle *images.Handle
	if opts.asyncImages && o.images != nil {
		imageHandle = o.images.StartSearch(ctx, state.Outline, pending, images.Emitter(emit))
		if opts.prefetchImages {
			if err := imageHandle.Wait(ctx); err != nil {
				o.finishFailed(ctx, state, emit, err)
				return
			}
		}
	}

	o.slidePhase(ctx, state, contexts, pending, userID, opts, emit)
	if imageHandle != nil {
		imageHandle.Cancel()
	}

	o.finalize(ctx, state, emit, time.Since(start))
}

// initialize persists the deck shell (fresh runs) or reloads it (resume)
// and emits the opening events.
func (o *Orchestrator) initialize(ctx context.Context, state *models.GenerationState, resumed bool, emit Emitter) (*models.Deck, error) {
	state.RunState = models.RunStateInitializing
	state.CurrentPhase = models.RunStateInitializing

	var deck *models.Deck
	if resumed {
		var err error
		deck, err = o.store.GetDeck(ctx, state.DeckID)
		if err != nil {
			return nil, fmt.Errorf("load deck for resume: %w", err)
		}
	} else {
		deck = models.NewDeck(state.DeckID, state.Outline)
	}
	deck.Status = models.DeckStatus{
		State:       models.DeckStateGenerating,
		TotalSlides: len(state.Outline.Slides),
		Message:     "composition started",
	}
	if err := o.store.SaveDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("persist deck shell: %w", err)
	}

	msg := "Deck composition started"
	if resumed {
		msg = "Deck composition resumed"
	}
	emit(events.New(events.TypeStarted, events.StartedPayload{Message: msg}))

	titles := make([]string, len(state.Outline.Slides))
	for i, s := range state.Outline.Slides {
		titles[i] = s.Title
	}
	emit(events.New(events.TypeOutlineStructure, events.OutlineStructurePayload{
		Title:       state.Outline.Title,
		SlideCount:  len(titles),
		SlideTitles: titles,
	}))

	if err := o.snapshots.Checkpoint(state); err != nil {
		o.logger.Warn("checkpoint failed", "generation_id", state.GenerationID, "error", err)
	}
	return deck, nil
}

// themePhase produces (or, on resume, reuses) the deck theme and persists
// it on the deck record.
func (o *Orchestrator) themePhase(ctx context.Context, state *models.GenerationState, deck *models.Deck, emit Emitter) (*models.ThemeSpec, error) {
	state.RunState = models.RunStateTheme
	state.CurrentPhase = models.RunStateTheme

	if deck.Theme != nil {
		emit(events.New(events.TypeThemeGenerated, events.ThemeGeneratedPayload{
			Palette: deck.Theme.Colors,
			Fonts:   deck.Theme.Fonts,
		}))
		return deck.Theme, nil
	}

	emit(events.New(events.TypeProgress, events.ProgressPayload{
		Phase: "theme", Message: "Designing deck theme", Progress: 5,
	}))

	theme, err := o.themes.Generate(ctx, state.Outline)
	if err != nil {
		return nil, err
	}

	deck.Theme = theme
	if err := o.store.SaveDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("persist theme: %w", err)
	}
	emit(events.New(events.TypeThemeGenerated, events.ThemeGeneratedPayload{
		Palette: theme.Colors,
		Fonts:   theme.Fonts,
	}))

	state.CompletedSteps++
	if err := o.snapshots.Checkpoint(state); err != nil {
		o.logger.Warn("checkpoint failed", "generation_id", state.GenerationID, "error", err)
	}
	return theme, nil
}

// mediaPhase processes uploaded media and returns the processed items
// grouped by target slide. Media failures degrade (items carry an error),
// they never abort the deck.
func (o *Orchestrator) mediaPhase(ctx context.Context, state *models.GenerationState, emit Emitter) map[string][]models.MediaItem {
	state.RunState = models.RunStateMedia
	state.CurrentPhase = models.RunStateMedia

	if o.media == nil || len(state.Outline.UploadedMedia) == 0 {
		return nil
	}

	emit(events.New(events.TypeProgress, events.ProgressPayload{
		Phase: "media", Message: "Processing uploaded media", Progress: 10,
	}))

	result, err := o.media.Process(ctx, state.DeckID, state.Outline.UploadedMedia)
	if err != nil {
		o.logger.Warn("media processing failed", "deck_id", state.DeckID, "error", err)
		return nil
	}
	emit(events.New(events.TypeMediaProcessed, events.MediaProcessedPayload{
		Count: result.Processed,
	}))

	bySlide := make(map[string][]models.MediaItem)
	for _, item := range result.Items {
		if item.Processed() && item.SlideID != "" {
			bySlide[item.SlideID] = append(bySlide[item.SlideID], item)
		}
	}

	state.CompletedSteps++
	if err := o.snapshots.Checkpoint(state); err != nil {
		o.logger.Warn("checkpoint failed", "generation_id", state.GenerationID, "error", err)
	}
	return bySlide
}

// buildContexts assembles the per-slide generation inputs for every slide
// that still needs work. Completed and skipped slides (resume) are not
// rebuilt.
func (o *Orchestrator) buildContexts(state *models.GenerationState, theme *models.ThemeSpec, mediaBySlide map[string][]models.MediaItem, userID string) []*models.SlideContext {
	pendingIDs := make(map[string]bool)
	for _, id := range state.PendingSlideIDs() {
		pendingIDs[id] = true
	}

	var contexts []*models.SlideContext
	for i, so := range state.Outline.Slides {
		if !pendingIDs[so.ID] {
			continue
		}
		tagged := append([]models.MediaItem{}, so.TaggedMedia...)
		tagged = append(tagged, mediaBySlide[so.ID]...)
		contexts = append(contexts, &models.SlideContext{
			Outline:        so,
			Index:          i,
			TotalSlides:    len(state.Outline.Slides),
			Theme:          theme,
			Palette:        theme.Colors,
			StyleManifesto: theme.StyleManifesto,
			TaggedMedia:    tagged,
			HasChartData:   so.ExtractedData.HasChartData(),
			HasTabularData: so.ExtractedData.HasTabularData(),
			DeckID:         state.DeckID,
			UserID:         userID,
		})
	}
	return contexts
}

// slidePhase fans slide generation out under the concurrency limits,
// recording each slide's terminal status in the generation state. Launches
// are paced by DelayBetweenSlides; each slide runs under its own timeout.
func (o *Orchestrator) slidePhase(ctx context.Context, state *models.GenerationState, contexts []*models.SlideContext, pending *images.PendingImageMap, userID string, opts options, emit Emitter) {
	state.RunState = models.RunStateSlidesInProgress
	state.CurrentPhase = models.RunStateSlidesInProgress

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	total := len(state.Outline.Slides)

	for i, sc := range contexts {
		if i > 0 && opts.delayBetweenSlides > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.delayBetweenSlides):
			}
		}
		if ctx.Err() != nil {
			break
		}

		slot, err := o.limits.AcquireSlideSlot(ctx, state.DeckID, userID, opts.maxParallel)
		if err != nil {
			break
		}

		wg.Add(1)
		go func(sc *models.SlideContext) {
			defer wg.Done()
			defer slot.Release()

			slideCtx, cancel := context.WithTimeout(ctx, opts.slideTimeout)
			defer cancel()

			slide, err := o.slides.Generate(slideCtx, sc, pending, emit)

			mu.Lock()
			defer mu.Unlock()

			st := state.SlideStates[sc.Outline.ID]
			st.Attempts++
			switch {
			case err != nil && ctx.Err() != nil:
				// Run-level cancellation: slide stays pending for resume.
				st.Status = models.SlideStatusPending
			case err != nil:
				st.Status = models.SlideStatusFailed
				settled++
			default:
				st.Status = slide.Status
				settled++
			}
			state.SlideStates[sc.Outline.ID] = st
			state.CompletedSteps++
			if err := o.snapshots.Checkpoint(state); err != nil {
				o.logger.Warn("checkpoint failed", "generation_id", state.GenerationID, "error", err)
			}

			if ctx.Err() == nil {
				progress := 15 + (80*settled)/max(total, 1)
				if statusErr := o.store.UpdateStatus(ctx, state.DeckID, models.DeckStatus{
					State:        models.DeckStateGenerating,
					CurrentSlide: settled,
					TotalSlides:  total,
					Progress:     progress,
				}); statusErr != nil {
					o.logger.Warn("deck status update failed", "deck_id", state.DeckID, "error", statusErr)
				}
				emit(events.New(events.TypeProgress, events.ProgressPayload{
					Phase:    "slides",
					Message:  fmt.Sprintf("%d of %d slides settled", settled, total),
					Progress: progress,
				}))
			}
		}(sc)
	}

	wg.Wait()
}

// finalize settles the deck's terminal status and closes the event stream.
// Any slide short of completed (failed, skipped, or never started) makes the
// outcome with_errors; a deck with no generated slide at all is failed.
func (o *Orchestrator) finalize(ctx context.Context, state *models.GenerationState, emit Emitter, elapsed time.Duration) {
	if ctx.Err() != nil {
		o.finishInterrupted(state, emit)
		return
	}

	state.RunState = models.RunStateFinalizing
	state.CurrentPhase = models.RunStateFinalizing

	total := len(state.Outline.Slides)
	var failed, skipped int
	for _, st := range state.SlideStates {
		switch st.Status {
		case models.SlideStatusFailed:
			failed++
		case models.SlideStatusSkipped:
			skipped++
		}
	}
	// Pending excludes completed and skipped, so failed slides count toward
	// it; pending+skipped is everything that did not fully generate.
	pending := len(state.PendingSlideIDs())
	flawed := pending + skipped

	var (
		deckState models.DeckState
		success   bool
		msg       string
	)
	switch {
	case flawed == 0:
		deckState, success = models.DeckStateComplete, true
		msg = "Deck composition complete"
	case failed == total:
		deckState, success = models.DeckStateFailed, false
		msg = "Deck composition failed: no slide could be generated"
	default:
		deckState, success = models.DeckStateCompleteWithErrors, false
		msg = fmt.Sprintf("Deck composition finished with_errors: %d of %d slides did not complete", flawed, total)
	}

	if err := o.store.UpdateStatus(ctx, state.DeckID, models.DeckStatus{
		State:        deckState,
		CurrentSlide: total - pending,
		TotalSlides:  total,
		Message:      msg,
		Progress:     100,
	}); err != nil {
		o.logger.Warn("final deck status update failed", "deck_id", state.DeckID, "error", err)
	}

	if deckState == models.DeckStateFailed {
		state.RunState = models.RunStateFailed
	} else {
		state.RunState = models.RunStateComplete
	}

	emit(events.New(events.TypeDeckComplete, events.DeckCompletePayload{
		DeckID:  state.DeckID,
		Success: success,
		Message: msg,
	}))
	emit(events.New(events.TypeEnd, events.EndPayload{Message: "Stream complete"}))

	o.logger.Info("composition finished",
		"deck_id", state.DeckID, "generation_id", state.GenerationID,
		"state", deckState, "failed", failed, "skipped", skipped,
		"duration_ms", elapsed.Milliseconds())
}

// finishInterrupted closes the stream for a paused or cancelled run. Paused
// runs keep their snapshot and report the paused deck state; cancelled runs
// report failure.
func (o *Orchestrator) finishInterrupted(state *models.GenerationState, emit Emitter) {
	paused := state.RunState == models.RunStatePaused

	deckState := models.DeckStateFailed
	msg := "Deck composition cancelled"
	if paused {
		deckState = models.DeckStatePaused
		msg = "Deck composition paused"
	}

	// The run context is gone; the status write gets its own deadline.
	statusCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	total := len(state.Outline.Slides)
	if err := o.store.UpdateStatus(statusCtx, state.DeckID, models.DeckStatus{
		State:        deckState,
		CurrentSlide: total - len(state.PendingSlideIDs()),
		TotalSlides:  total,
		Message:      msg,
	}); err != nil {
		o.logger.Warn("interrupted status update failed", "deck_id", state.DeckID, "error", err)
	}

	if !paused {
		emit(events.New(events.TypeError, events.ErrorPayload{
			Error:   "cancelled",
			Message: msg,
		}))
	}
	emit(events.New(events.TypeEnd, events.EndPayload{Message: "Stream complete"}))

	o.logger.Info("composition interrupted",
		"deck_id", state.DeckID, "generation_id", state.GenerationID, "paused", paused)
}

// finishFailed settles a run that died before the slide phase.
func (o *Orchestrator) finishFailed(ctx context.Context, state *models.GenerationState, emit Emitter, cause error) {
	if ctx.Err() != nil {
		o.finishInterrupted(state, emit)
		return
	}
	state.RunState = models.RunStateFailed

	statusCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.UpdateStatus(statusCtx, state.DeckID, models.DeckStatus{
		State:       models.DeckStateFailed,
		TotalSlides: len(state.Outline.Slides),
		Message:     cause.Error(),
	}); err != nil {
		o.logger.Warn("failed status update failed", "deck_id", state.DeckID, "error", err)
	}

	emit(events.New(events.TypeError, events.ErrorPayload{
		Error:   cause.Error(),
		Message: "Deck composition failed",
	}))
	emit(events.New(events.TypeEnd, events.EndPayload{Message: "Stream complete"}))

	o.logger.Error("composition failed",
		"deck_id", state.DeckID, "generation_id", state.GenerationID, "error", cause)
}
