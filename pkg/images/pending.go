package images

import (
	"sync"

	"github.com/decksmith/decksmith/pkg/models"
)

// PendingImageMap routes found images to slides. Search goroutines Put
// results as topics resolve; slide generators Take them at prompt-build
// time. Take removes what it returns, so an image reaches at most one
// generation attempt even when search and fan-out race.
type PendingImageMap struct {
	mu      sync.Mutex
	bySlide map[string][]models.Image
}

// NewPendingImageMap creates an empty map.
func NewPendingImageMap() *PendingImageMap {
	return &PendingImageMap{bySlide: make(map[string][]models.Image)}
}

// Put appends images for a slide.
func (p *PendingImageMap) Put(slideID string, imgs []models.Image) {
	if len(imgs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bySlide[slideID] = append(p.bySlide[slideID], imgs...)
}

// Take atomically removes and returns everything pending for a slide.
func (p *PendingImageMap) Take(slideID string) []models.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	imgs := p.bySlide[slideID]
	delete(p.bySlide, slideID)
	return imgs
}

// Peek reports how many images are pending for a slide without consuming.
func (p *PendingImageMap) Peek(slideID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bySlide[slideID])
}
