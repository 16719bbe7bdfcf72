package store

import (
	"context"
	"strconv"
	"sync"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"

	"go.uber.org/zap"
)

// Pins records the pinned discovery message per destination and token.
// A zero message id marks a claim whose pin is still in flight.
type Pins struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	byChat  map[string]map[string]int
	backend persist.Backend
	log     *logger.Logger
}

func NewPins(backend persist.Backend, appLogger *logger.Logger) *Pins {
	return &Pins{
		byChat:  map[string]map[string]int{},
		backend: backend,
		log:     appLogger.With("store", DocPins),
	}
}

func (p *Pins) Load(ctx context.Context) {
	doc := map[string]map[string]int{}
	if !loadDocument(ctx, p.backend, DocPins, &doc, p.log) {
		return
	}
	for chat, tokens := range doc {
		for token, id := range tokens {
			if id == 0 {
				delete(tokens, token)
			}
		}
		if len(tokens) == 0 {
			delete(doc, chat)
		}
	}
	p.mu.Lock()
	p.byChat = doc
	p.mu.Unlock()
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (p *Pins) Has(chatID int64, tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byChat[chatKey(chatID)][tokenID]
	return ok
}

// Claim reserves the pin slot for (chatID, tokenID). Only the first claim succeeds.
func (p *Pins) Claim(chatID int64, tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := chatKey(chatID)
	tokens, ok := p.byChat[key]
	if !ok {
		tokens = map[string]int{}
		p.byChat[key] = tokens
	}
	if _, taken := tokens[tokenID]; taken {
		return false
	}
	tokens[tokenID] = 0
	return true
}

// Release drops an unconfirmed claim after a failed pin.
func (p *Pins) Release(chatID int64, tokenID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tokens, ok := p.byChat[chatKey(chatID)]; ok && tokens[tokenID] == 0 {
		delete(tokens, tokenID)
	}
}

// Confirm stores the pinned message id of a claim and persists the table.
func (p *Pins) Confirm(ctx context.Context, chatID int64, tokenID string, messageID int) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	key := chatKey(chatID)
	if p.byChat[key] == nil {
		p.byChat[key] = map[string]int{}
	}
	p.byChat[key][tokenID] = messageID
	doc := make(map[string]map[string]int, len(p.byChat))
	for chat, tokens := range p.byChat {
		cp := make(map[string]int, len(tokens))
		for t, id := range tokens {
			if id != 0 {
				cp[t] = id
			}
		}
		doc[chat] = cp
	}
	p.mu.Unlock()

	if err := p.backend.Save(ctx, DocPins, doc); err != nil {
		p.log.Warn("Pin table write failed", zap.Error(err))
		return err
	}
	return nil
}

func (p *Pins) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, tokens := range p.byChat {
		for _, id := range tokens {
			if id != 0 {
				n++
			}
		}
	}
	return n
}
