// Package chat owns the state of the single conversation served by this
// process: the transcript, the draft input, the live Gemini session and the
// loading/error status.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemini-chat/internal/models"
	"gemini-chat/internal/services"
)

var (
	ErrEmptyMessage     = errors.New("message is required")
	ErrNoSession        = errors.New("chat session is not initialized")
	ErrExchangeInFlight = errors.New("a message is already being sent")
	ErrExchangeFailed   = errors.New("exchange failed")
)

const missingKeyMessage = "Gemini API key is missing. Please set GEMINI_API_KEY in your .env file."

type Controller struct {
	mu sync.Mutex

	apiKey    string
	newClient services.ClientFactory
	params    models.GenerationParams

	messages []models.ChatMessage
	input    string
	client   services.ChatClient
	session  services.ChatSession
	epoch    int
	loading  bool
	errMsg   string
	version  uint64

	// clients replaced while an exchange was still using them
	retired []services.ChatClient

	observers []func(models.ChatSnapshot)
	now       func() time.Time
}

func NewController(apiKey string, newClient services.ClientFactory, params models.GenerationParams) *Controller {
	if params.Model == "" {
		params.Model = models.DefaultModel
	}
	if t, err := models.NormalizeTemperature(params.Temperature); err == nil {
		params.Temperature = t
	} else {
		params.Temperature = models.DefaultTemperature
	}
	return &Controller{
		apiKey:    apiKey,
		newClient: newClient,
		params:    params,
		messages:  []models.ChatMessage{},
		now:       time.Now,
	}
}

// Observe registers fn to receive a snapshot after every state change.
// fn runs outside the controller lock and may be called concurrently.
func (c *Controller) Observe(fn func(models.ChatSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Initialize opens a fresh session for the current generation parameters.
// Failures are recorded in the error state and also returned.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	err := c.initLocked(ctx)
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.notify(observers, snap)
	return err
}

// SetTemperature starts a new session with temperature t. The transcript is
// kept; messages carry the epoch they belong to.
func (c *Controller) SetTemperature(ctx context.Context, t float64) error {
	t, err := models.NormalizeTemperature(t)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if t == c.params.Temperature && c.session != nil {
		c.mu.Unlock()
		return nil
	}
	c.params.Temperature = t
	err = c.initLocked(ctx)
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.notify(observers, snap)
	return err
}

// SetInput stores the draft message.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	if c.input == text {
		c.mu.Unlock()
		return
	}
	c.input = text
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.notify(observers, snap)
}

// Submit sends the current draft.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	text := c.input
	c.mu.Unlock()
	return c.Send(ctx, text)
}

// Send performs one exchange. The user message is appended before the
// remote call; the reply or the error is applied when it returns. A rejected
// send leaves the transcript and the draft untouched.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	switch {
	case text == "":
		c.mu.Unlock()
		return ErrEmptyMessage
	case c.session == nil:
		c.mu.Unlock()
		return ErrNoSession
	case c.loading:
		c.mu.Unlock()
		return ErrExchangeInFlight
	}

	session, epoch := c.session, c.epoch
	c.appendLocked(models.RoleUser, text, epoch, false)
	c.input = ""
	c.loading = true
	c.errMsg = ""
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.notify(observers, snap)

	reply, exchangeErr := session.SendMessage(ctx, text)

	c.mu.Lock()
	if exchangeErr != nil {
		c.errMsg = "Error: " + exchangeErr.Error()
	} else {
		stale := epoch != c.epoch
		if stale {
			log.Printf("WARNING: reply for epoch %d arrived after session moved to epoch %d", epoch, c.epoch)
		}
		c.appendLocked(models.RoleModel, reply, epoch, stale)
	}
	c.loading = false
	retired := c.retired
	c.retired = nil
	snap, observers = c.changedLocked()
	c.mu.Unlock()

	closeClients(retired)
	c.notify(observers, snap)

	if exchangeErr != nil {
		return fmt.Errorf("%w: %w", ErrExchangeFailed, exchangeErr)
	}
	return nil
}

func (c *Controller) Snapshot() models.ChatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close releases the live client and any retired ones.
func (c *Controller) Close() {
	c.mu.Lock()
	clients := c.retired
	if c.client != nil {
		clients = append(clients, c.client)
	}
	c.client, c.session, c.retired = nil, nil, nil
	c.mu.Unlock()

	closeClients(clients)
}

func (c *Controller) initLocked(ctx context.Context) error {
	c.errMsg = ""
	c.epoch++
	c.dropSessionLocked()

	if strings.TrimSpace(c.apiKey) == "" {
		c.errMsg = missingKeyMessage
		return services.ErrMissingAPIKey
	}

	client, err := c.newClient(ctx, c.apiKey)
	if err != nil {
		c.errMsg = "Failed to initialize chat: " + err.Error()
		return err
	}

	session, err := client.StartChat(ctx, c.params)
	if err != nil {
		client.Close()
		c.errMsg = "Failed to initialize chat: " + err.Error()
		return err
	}

	c.client = client
	c.session = session
	return nil
}

// dropSessionLocked forgets the live session. Its client is closed now, or
// after the pending exchange if one is running.
func (c *Controller) dropSessionLocked() {
	old := c.client
	c.client, c.session = nil, nil
	if old == nil {
		return
	}
	if c.loading {
		c.retired = append(c.retired, old)
		return
	}
	if err := old.Close(); err != nil {
		log.Printf("Failed to close Gemini client: %v", err)
	}
}

func (c *Controller) appendLocked(role models.Role, content string, epoch int, stale bool) {
	c.messages = append(c.messages, models.ChatMessage{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Epoch:     epoch,
		Stale:     stale,
		CreatedAt: c.now(),
	})
}

func (c *Controller) changedLocked() (models.ChatSnapshot, []func(models.ChatSnapshot)) {
	c.version++
	observers := make([]func(models.ChatSnapshot), len(c.observers))
	copy(observers, c.observers)
	return c.snapshotLocked(), observers
}

func (c *Controller) snapshotLocked() models.ChatSnapshot {
	messages := make([]models.ChatMessage, len(c.messages))
	copy(messages, c.messages)

	return models.ChatSnapshot{
		Messages:         messages,
		Input:            c.input,
		Loading:          c.loading,
		Error:            c.errMsg,
		Temperature:      c.params.Temperature,
		TemperatureLabel: models.TemperatureLabel(c.params.Temperature),
		Model:            c.params.Model,
		Epoch:            c.epoch,
		Ready:            c.session != nil,
		Version:          c.version,
	}
}

func (c *Controller) notify(observers []func(models.ChatSnapshot), snap models.ChatSnapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

func closeClients(clients []services.ChatClient) {
	for _, cl := range clients {
		if err := cl.Close(); err != nil {
			log.Printf("Failed to close Gemini client: %v", err)
		}
	}
}
