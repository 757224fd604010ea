// Package metrics exposes Prometheus instrumentation for the composition
// engine. The recorder observes the event bus rather than being threaded
// through the pipeline, so generation code stays metric-free.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/limits"
)

// Recorder holds the engine's metric families on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	decksStarted   prometheus.Counter
	decksCompleted *prometheus.CounterVec
	slidesSettled  *prometheus.CounterVec
	slideDuration  prometheus.Histogram
	themesGen      *prometheus.CounterVec
	imagesFound    prometheus.Counter
}

// NewRecorder builds the metric families. The limits manager, when given,
// backs the active-slides gauge.
func NewRecorder(lim *limits.Manager) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	r := &Recorder{
		registry: reg,
		decksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "decksmith_decks_started_total",
			Help: "Deck compositions started.",
		}),
		decksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decksmith_decks_completed_total",
			Help: "Deck compositions finished, by outcome.",
		}, []string{"outcome"}),
		slidesSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decksmith_slides_settled_total",
			Help: "Slides reaching a terminal state, by outcome.",
		}, []string{"outcome"}),
		slideDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "decksmith_slide_generation_seconds",
			Help:    "Wall time to generate one slide.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		themesGen: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decksmith_themes_generated_total",
			Help: "Themes produced, by source.",
		}, []string{"source"}),
		imagesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "decksmith_topic_images_found_total",
			Help: "Candidate images discovered by topic search.",
		}),
	}

	if lim != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "decksmith_active_slides",
			Help: "Slides currently generating across all decks.",
		}, func() float64 {
			return float64(lim.Stats().ActiveSlides)
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "decksmith_active_decks",
			Help: "Decks currently holding a generation lock.",
		}, func() float64 {
			return float64(lim.Stats().HeldDeckLocks)
		})
	}
	return r
}

// Attach subscribes the recorder to the bus. Returns the unsubscribe
// function.
func (r *Recorder) Attach(bus *events.Bus) func() {
	return bus.SubscribeAll(r.observe)
}

// Handler serves the registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) observe(ev events.GenerationEvent) {
	switch ev.Type {
	case events.TypeStarted:
		r.decksStarted.Inc()
	case events.TypeThemeGenerated:
		r.themesGen.WithLabelValues("generated").Inc()
	case events.TypeSlideGenerated:
		r.slidesSettled.WithLabelValues("completed").Inc()
		if p, ok := ev.Data.(events.SlideGeneratedPayload); ok {
			r.slideDuration.Observe(p.GenerationTime)
		}
	case events.TypeSlideSkipped:
		r.slidesSettled.WithLabelValues("skipped").Inc()
	case events.TypeSlideError:
		r.slidesSettled.WithLabelValues("failed").Inc()
	case events.TypeTopicImagesFound:
		if p, ok := ev.Data.(events.TopicImagesFoundPayload); ok {
			r.imagesFound.Add(float64(p.ImagesCount))
		}
	case events.TypeDeckComplete:
		outcome := "failed"
		if p, ok := ev.Data.(events.DeckCompletePayload); ok {
			switch {
			case p.Success:
				outcome = "complete"
			case strings.Contains(p.Message, "with_errors"):
				outcome = "complete_with_errors"
			}
		}
		r.decksCompleted.WithLabelValues(outcome).Inc()
	}
}
