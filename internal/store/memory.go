// In-memory Store implementation, used when PostgreSQL is not configured
// (local dev, tests). A file snapshot lets data survive restarts.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	TaskExecutions map[string]*models.TaskExecution     `json:"task_executions"`
	Conversations  map[string]*models.Conversation      `json:"conversations"`
	Interactions   map[string][]*models.Interaction     `json:"interactions"` // key: conversation id
	Leads          map[string]*models.Lead              `json:"leads"`
	Agenda         map[string]*models.Agenda            `json:"agenda"`
	Businesses     map[string]*models.Business          `json:"businesses"`
	Hours          map[string][]models.BusinessHours    `json:"hours"`      // key: business id
	Exceptions     map[string][]models.HoursException   `json:"exceptions"` // key: business id
	Assistants     map[string]*models.Assistant         `json:"assistants"`
	Capabilities   map[string]*models.Capability        `json:"capabilities"`
	Offers         map[string]*models.Offer             `json:"offers"`
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu             sync.RWMutex
	taskExecutions map[string]*models.TaskExecution
	conversations  map[string]*models.Conversation
	interactions   map[string][]*models.Interaction // append-only per conversation
	leads          map[string]*models.Lead
	agenda         map[string]*models.Agenda
	businesses     map[string]*models.Business
	hours          map[string][]models.BusinessHours
	exceptions     map[string][]models.HoursException
	assistants     map[string]*models.Assistant
	capabilities   map[string]*models.Capability
	offers         map[string]*models.Offer

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
}

// NewMemoryStore creates a new in-memory store. When dataDir is non-empty,
// data is persisted to dataDir/data.json and reloaded on the next start.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		taskExecutions: make(map[string]*models.TaskExecution),
		conversations:  make(map[string]*models.Conversation),
		interactions:   make(map[string][]*models.Interaction),
		leads:          make(map[string]*models.Lead),
		agenda:         make(map[string]*models.Agenda),
		businesses:     make(map[string]*models.Business),
		hours:          make(map[string][]models.BusinessHours),
		exceptions:     make(map[string][]models.HoursException),
		assistants:     make(map[string]*models.Assistant),
		capabilities:   make(map[string]*models.Capability),
		offers:         make(map[string]*models.Offer),
		saveCh:         make(chan struct{}, 1),
		doneCh:         make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		TaskExecutions: m.taskExecutions,
		Conversations:  m.conversations,
		Interactions:   m.interactions,
		Leads:          m.leads,
		Agenda:         m.agenda,
		Businesses:     m.businesses,
		Hours:          m.hours,
		Exceptions:     m.exceptions,
		Assistants:     m.assistants,
		Capabilities:   m.capabilities,
		Offers:         m.offers,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.TaskExecutions != nil {
		m.taskExecutions = snap.TaskExecutions
	}
	if snap.Conversations != nil {
		m.conversations = snap.Conversations
	}
	if snap.Interactions != nil {
		m.interactions = snap.Interactions
	}
	if snap.Leads != nil {
		m.leads = snap.Leads
	}
	if snap.Agenda != nil {
		m.agenda = snap.Agenda
	}
	if snap.Businesses != nil {
		m.businesses = snap.Businesses
	}
	if snap.Hours != nil {
		m.hours = snap.Hours
	}
	if snap.Exceptions != nil {
		m.exceptions = snap.Exceptions
	}
	if snap.Assistants != nil {
		m.assistants = snap.Assistants
	}
	if snap.Capabilities != nil {
		m.capabilities = snap.Capabilities
	}
	if snap.Offers != nil {
		m.offers = snap.Offers
	}

	log.Info().
		Int("task_executions", len(m.taskExecutions)).
		Int("conversations", len(m.conversations)).
		Int("leads", len(m.leads)).
		Int("agenda", len(m.agenda)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops background goroutines and forces a final snapshot write.
// Safe to call multiple times.
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		log.Info().Msg("💾 Flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}
	log.Info().Msg("Memory store closed")
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Task Execution Store ────────────────────────────────────

func (m *MemoryStore) CreateTaskExecution(_ context.Context, te *models.TaskExecution) error {
	m.mu.Lock()
	cp := *te
	m.taskExecutions[te.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetTaskExecution(_ context.Context, id string) (*models.TaskExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	te, ok := m.taskExecutions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "task execution", Key: id}
	}
	cp := *te
	return &cp, nil
}

func (m *MemoryStore) UpdateTaskExecutionMetadata(_ context.Context, id, metadata string, status models.TaskStatus) error {
	m.mu.Lock()
	te, ok := m.taskExecutions[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "task execution", Key: id}
	}
	te.Metadata = metadata
	te.Status = status
	te.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Conversation Store ──────────────────────────────────────

func (m *MemoryStore) CreateConversation(_ context.Context, c *models.Conversation) error {
	m.mu.Lock()
	cp := *c
	m.conversations[c.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "conversation", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) TouchConversation(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	c, ok := m.conversations[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	c.UpdatedAt = at
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Interaction Store ───────────────────────────────────────

func (m *MemoryStore) CreateInteraction(_ context.Context, in *models.Interaction) error {
	m.mu.Lock()
	if _, ok := m.conversations[in.ConversationID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "conversation", Key: in.ConversationID}
	}
	cp := *in
	m.interactions[in.ConversationID] = append(m.interactions[in.ConversationID], &cp)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListInteractions(_ context.Context, conversationID string, limit int) ([]models.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.interactions[conversationID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	result := make([]models.Interaction, 0, len(msgs)-start)
	for _, in := range msgs[start:] {
		result = append(result, *in)
	}
	return result, nil
}

// ── Lead Store ──────────────────────────────────────────────

func copyLead(l *models.Lead) *models.Lead {
	cp := *l
	if l.JSONParams != nil {
		cp.JSONParams = make(map[string]any, len(l.JSONParams))
		for k, v := range l.JSONParams {
			cp.JSONParams[k] = v
		}
	}
	return &cp
}

func (m *MemoryStore) CreateLead(_ context.Context, lead *models.Lead) error {
	m.mu.Lock()
	m.leads[lead.ID] = copyLead(lead)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetLead(_ context.Context, id string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "lead", Key: id}
	}
	return copyLead(l), nil
}

func (m *MemoryStore) UpdateLead(_ context.Context, lead *models.Lead) error {
	m.mu.Lock()
	if _, ok := m.leads[lead.ID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "lead", Key: lead.ID}
	}
	cp := copyLead(lead)
	cp.UpdatedAt = time.Now().UTC()
	m.leads[lead.ID] = cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Agenda Store ────────────────────────────────────────────

func (m *MemoryStore) CreateAgenda(_ context.Context, a *models.Agenda) error {
	m.mu.Lock()
	cp := *a
	m.agenda[a.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetAgenda(_ context.Context, id string) (*models.Agenda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agenda[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "agenda", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateAgenda(_ context.Context, a *models.Agenda) error {
	m.mu.Lock()
	if _, ok := m.agenda[a.ID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agenda", Key: a.ID}
	}
	cp := *a
	cp.UpdatedAt = time.Now().UTC()
	m.agenda[a.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListAgenda(_ context.Context, filter AgendaFilter) ([]models.Agenda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Agenda
	for _, a := range m.agenda {
		if filter.LeadID != "" && a.LeadID != filter.LeadID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.From != nil && a.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.Date.After(*filter.To) {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ── Business Store ──────────────────────────────────────────

func (m *MemoryStore) UpsertBusiness(_ context.Context, b *models.Business) error {
	m.mu.Lock()
	cp := *b
	m.businesses[b.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetBusiness(_ context.Context, id string) (*models.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "business", Key: id}
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) SetBusinessHours(_ context.Context, businessID string, hours []models.BusinessHours) error {
	m.mu.Lock()
	cp := make([]models.BusinessHours, len(hours))
	copy(cp, hours)
	for i := range cp {
		cp[i].BusinessID = businessID
	}
	m.hours[businessID] = cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListBusinessHours(_ context.Context, businessID string) ([]models.BusinessHours, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hours := m.hours[businessID]
	result := make([]models.BusinessHours, len(hours))
	copy(result, hours)
	return result, nil
}

func (m *MemoryStore) AddHoursException(_ context.Context, ex *models.HoursException) error {
	m.mu.Lock()
	m.exceptions[ex.BusinessID] = append(m.exceptions[ex.BusinessID], *ex)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListHoursExceptions(_ context.Context, businessID string, from, to time.Time) ([]models.HoursException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.HoursException
	for _, ex := range m.exceptions[businessID] {
		if ex.Date.Before(from) || ex.Date.After(to) {
			continue
		}
		result = append(result, ex)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ── Assistant Store ─────────────────────────────────────────

func (m *MemoryStore) UpsertAssistant(_ context.Context, a *models.Assistant) error {
	m.mu.Lock()
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	m.assistants[a.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetAssistant(_ context.Context, id string) (*models.Assistant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assistants[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "assistant", Key: id}
	}
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	return &cp, nil
}

// ── Capability Store ────────────────────────────────────────

func (m *MemoryStore) UpsertCapability(_ context.Context, c *models.Capability) error {
	m.mu.Lock()
	cp := *c
	m.capabilities[c.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetCapability(_ context.Context, id string) (*models.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.capabilities[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "capability", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListCapabilities(_ context.Context) ([]models.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Capability, 0, len(m.capabilities))
	for _, c := range m.capabilities {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ── Offer Store ─────────────────────────────────────────────

func copyOffer(o *models.Offer) *models.Offer {
	cp := *o
	cp.Images = append([]models.OfferImage(nil), o.Images...)
	if o.Value != nil {
		v := *o.Value
		cp.Value = &v
	}
	return &cp
}

func (m *MemoryStore) UpsertOffer(_ context.Context, o *models.Offer) error {
	m.mu.Lock()
	m.offers[o.ID] = copyOffer(o)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetOffer(_ context.Context, id string) (*models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "offer", Key: id}
	}
	return copyOffer(o), nil
}

func (m *MemoryStore) ListOffers(_ context.Context, businessID string) ([]models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Offer
	for _, o := range m.offers {
		if o.BusinessID == businessID {
			result = append(result, *copyOffer(o))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}
