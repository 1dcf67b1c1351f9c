package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connURL, retrying with exponential backoff
// until maxWait elapses. maxConns <= 0 keeps the pgx default.
func NewPostgresStore(ctx context.Context, connURL string, maxConns int, maxWait time.Duration) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warn().Err(err).Msg("PostgreSQL not reachable yet, retrying")
			return err
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	log.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("PostgreSQL store connected")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	log.Info().Msg("PostgreSQL store closed")
	return nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS task_executions (
			id           TEXT PRIMARY KEY,
			task_id      TEXT NOT NULL DEFAULT '',
			assistant_id TEXT NOT NULL DEFAULT '',
			metadata     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id           TEXT PRIMARY KEY,
			lead_id      TEXT NOT NULL,
			assistant_id TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'open',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS interactions (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role            TEXT NOT NULL,
			message         TEXT NOT NULL,
			media_url       TEXT NOT NULL DEFAULT '',
			media_type      TEXT NOT NULL DEFAULT '',
			agent_id        TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_interactions_conv ON interactions (conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS leads (
			id          TEXT PRIMARY KEY,
			crm_id      TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			phone       TEXT NOT NULL DEFAULT '',
			json_params JSONB NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS agenda (
			id          TEXT PRIMARY KEY,
			lead_id     TEXT NOT NULL,
			crm_id      TEXT NOT NULL DEFAULT '',
			agent_id    TEXT NOT NULL DEFAULT '',
			subject     TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			date        TIMESTAMPTZ NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pendiente',
			meeting_url TEXT NOT NULL DEFAULT '',
			reminder_at TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_agenda_lead ON agenda (lead_id, status);

		CREATE TABLE IF NOT EXISTS businesses (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT '',
			maps_url    TEXT NOT NULL DEFAULT '',
			phone       TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			policies    TEXT NOT NULL DEFAULT '',
			faq         JSONB NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS business_hours (
			business_id TEXT NOT NULL,
			day         TEXT NOT NULL,
			open        TEXT NOT NULL,
			close       TEXT NOT NULL,
			PRIMARY KEY (business_id, day)
		);

		CREATE TABLE IF NOT EXISTS hours_exceptions (
			business_id TEXT NOT NULL,
			date        TIMESTAMPTZ NOT NULL,
			closed      BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_hours_exceptions ON hours_exceptions (business_id, date);

		CREATE TABLE IF NOT EXISTS assistants (
			id           TEXT PRIMARY KEY,
			business_id  TEXT NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			channel      TEXT NOT NULL DEFAULT '',
			capabilities JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS capabilities (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			tool_description TEXT NOT NULL DEFAULT '',
			instruction      TEXT NOT NULL DEFAULT '',
			function         JSONB,
			custom_fields    JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS offers (
			id           TEXT PRIMARY KEY,
			business_id  TEXT NOT NULL,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			type         TEXT NOT NULL DEFAULT '',
			value        DOUBLE PRECISION,
			code         TEXT NOT NULL DEFAULT '',
			conditions   TEXT NOT NULL DEFAULT '',
			payment_link TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'activo',
			starts_at    TIMESTAMPTZ NOT NULL,
			ends_at      TIMESTAMPTZ NOT NULL,
			images       JSONB NOT NULL DEFAULT '[]',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_offers_business ON offers (business_id, created_at DESC);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	log.Info().Msg("✅ PostgreSQL migrations applied")
	return nil
}

// notFound converts pgx.ErrNoRows into *ErrNotFound.
func notFound(err error, entity, key string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &ErrNotFound{Entity: entity, Key: key}
	}
	return err
}

// mustJSON marshals v for a JSONB column, falling back to def on error.
func mustJSON(v any, def string) []byte {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return []byte(def)
	}
	return b
}

// ── Task Execution Store ────────────────────────────────────

func (s *PostgresStore) CreateTaskExecution(ctx context.Context, te *models.TaskExecution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_executions (id, task_id, assistant_id, metadata, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		te.ID, te.TaskID, te.AssistantID, te.Metadata, te.Status, te.CreatedAt, te.UpdatedAt)
	return err
}

func (s *PostgresStore) GetTaskExecution(ctx context.Context, id string) (*models.TaskExecution, error) {
	var te models.TaskExecution
	err := s.pool.QueryRow(ctx, `
		SELECT id, task_id, assistant_id, metadata, status, created_at, updated_at
		FROM task_executions WHERE id = $1`, id).
		Scan(&te.ID, &te.TaskID, &te.AssistantID, &te.Metadata, &te.Status, &te.CreatedAt, &te.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "task execution", id)
	}
	return &te, nil
}

func (s *PostgresStore) UpdateTaskExecutionMetadata(ctx context.Context, id, metadata string, status models.TaskStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE task_executions SET metadata = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, metadata, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "task execution", Key: id}
	}
	return nil
}

// ── Conversation Store ──────────────────────────────────────

func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, lead_id, assistant_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.LeadID, c.AssistantID, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, lead_id, assistant_id, status, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.LeadID, &c.AssistantID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return &c, nil
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	return nil
}

// ── Interaction Store ───────────────────────────────────────

func (s *PostgresStore) CreateInteraction(ctx context.Context, in *models.Interaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interactions (id, conversation_id, role, message, media_url, media_type, agent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID, in.ConversationID, in.Role, in.Message, in.MediaURL, in.MediaType, in.AgentID, in.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
		return &ErrNotFound{Entity: "conversation", Key: in.ConversationID}
	}
	return err
}

func (s *PostgresStore) ListInteractions(ctx context.Context, conversationID string, limit int) ([]models.Interaction, error) {
	query := `
		SELECT id, conversation_id, role, message, media_url, media_type, agent_id, created_at
		FROM (
			SELECT * FROM interactions WHERE conversation_id = $1
			ORDER BY created_at DESC`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	query += `) recent ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var result []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.ID, &in.ConversationID, &in.Role, &in.Message,
			&in.MediaURL, &in.MediaType, &in.AgentID, &in.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, in)
	}
	return result, rows.Err()
}

// ── Lead Store ──────────────────────────────────────────────

func (s *PostgresStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (id, crm_id, name, email, phone, json_params, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lead.ID, lead.CRMID, lead.Name, lead.Email, lead.Phone,
		mustJSON(lead.JSONParams, "{}"), lead.CreatedAt, lead.UpdatedAt)
	return err
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var (
		l      models.Lead
		params []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, crm_id, name, email, phone, json_params, created_at, updated_at
		FROM leads WHERE id = $1`, id).
		Scan(&l.ID, &l.CRMID, &l.Name, &l.Email, &l.Phone, &params, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "lead", id)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &l.JSONParams); err != nil {
			log.Warn().Err(err).Str("lead", id).Msg("Lead json_params not an object, ignoring")
		}
	}
	return &l, nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *models.Lead) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE leads SET crm_id = $2, name = $3, email = $4, phone = $5, json_params = $6, updated_at = NOW()
		WHERE id = $1`,
		lead.ID, lead.CRMID, lead.Name, lead.Email, lead.Phone, mustJSON(lead.JSONParams, "{}"))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "lead", Key: lead.ID}
	}
	return nil
}

// ── Agenda Store ────────────────────────────────────────────

const agendaColumns = `id, lead_id, crm_id, agent_id, subject, description, date, type, status, meeting_url, reminder_at, created_at, updated_at`

func scanAgenda(row pgx.Row) (*models.Agenda, error) {
	var a models.Agenda
	err := row.Scan(&a.ID, &a.LeadID, &a.CRMID, &a.AgentID, &a.Subject, &a.Description,
		&a.Date, &a.Type, &a.Status, &a.MeetingURL, &a.ReminderAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CreateAgenda(ctx context.Context, a *models.Agenda) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agenda (`+agendaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.LeadID, a.CRMID, a.AgentID, a.Subject, a.Description, a.Date, a.Type,
		a.Status, a.MeetingURL, a.ReminderAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *PostgresStore) GetAgenda(ctx context.Context, id string) (*models.Agenda, error) {
	a, err := scanAgenda(s.pool.QueryRow(ctx, `SELECT `+agendaColumns+` FROM agenda WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "agenda", id)
	}
	return a, nil
}

func (s *PostgresStore) UpdateAgenda(ctx context.Context, a *models.Agenda) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agenda SET agent_id = $2, subject = $3, description = $4, date = $5, type = $6,
			status = $7, meeting_url = $8, reminder_at = $9, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.AgentID, a.Subject, a.Description, a.Date, a.Type, a.Status, a.MeetingURL, a.ReminderAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "agenda", Key: a.ID}
	}
	return nil
}

func (s *PostgresStore) ListAgenda(ctx context.Context, filter AgendaFilter) ([]models.Agenda, error) {
	query := `SELECT ` + agendaColumns + ` FROM agenda WHERE TRUE`
	var args []interface{}
	argIdx := 1

	if filter.LeadID != "" {
		query += fmt.Sprintf(" AND lead_id = $%d", argIdx)
		args = append(args, filter.LeadID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIdx)
		args = append(args, *filter.To)
	}
	query += " ORDER BY date ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}
	defer rows.Close()

	var result []models.Agenda
	for rows.Next() {
		a, err := scanAgenda(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// ── Business Store ──────────────────────────────────────────

func (s *PostgresStore) UpsertBusiness(ctx context.Context, b *models.Business) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, description, address, maps_url, phone, email, policies, faq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, address = EXCLUDED.address,
			maps_url = EXCLUDED.maps_url, phone = EXCLUDED.phone, email = EXCLUDED.email,
			policies = EXCLUDED.policies, faq = EXCLUDED.faq`,
		b.ID, b.Name, b.Description, b.Address, b.MapsURL, b.Phone, b.Email, b.Policies, mustJSON(b.FAQ, "{}"))
	return err
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	var (
		b   models.Business
		faq []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, address, maps_url, phone, email, policies, faq
		FROM businesses WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Description, &b.Address, &b.MapsURL, &b.Phone, &b.Email, &b.Policies, &faq)
	if err != nil {
		return nil, notFound(err, "business", id)
	}
	if len(faq) > 0 {
		_ = json.Unmarshal(faq, &b.FAQ)
	}
	return &b, nil
}

func (s *PostgresStore) SetBusinessHours(ctx context.Context, businessID string, hours []models.BusinessHours) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE business_id = $1`, businessID); err != nil {
		return err
	}
	for _, h := range hours {
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_hours (business_id, day, open, close) VALUES ($1, $2, $3, $4)`,
			businessID, h.Day, h.Open, h.Close); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListBusinessHours(ctx context.Context, businessID string) ([]models.BusinessHours, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT business_id, day, open, close FROM business_hours WHERE business_id = $1`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var result []models.BusinessHours
	for rows.Next() {
		var h models.BusinessHours
		if err := rows.Scan(&h.BusinessID, &h.Day, &h.Open, &h.Close); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (s *PostgresStore) AddHoursException(ctx context.Context, ex *models.HoursException) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hours_exceptions (business_id, date, closed, description) VALUES ($1, $2, $3, $4)`,
		ex.BusinessID, ex.Date, ex.Closed, ex.Description)
	return err
}

func (s *PostgresStore) ListHoursExceptions(ctx context.Context, businessID string, from, to time.Time) ([]models.HoursException, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT business_id, date, closed, description FROM hours_exceptions
		WHERE business_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list hours exceptions: %w", err)
	}
	defer rows.Close()

	var result []models.HoursException
	for rows.Next() {
		var ex models.HoursException
		if err := rows.Scan(&ex.BusinessID, &ex.Date, &ex.Closed, &ex.Description); err != nil {
			return nil, err
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// ── Assistant Store ─────────────────────────────────────────

func (s *PostgresStore) UpsertAssistant(ctx context.Context, a *models.Assistant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assistants (id, business_id, name, channel, capabilities)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			business_id = EXCLUDED.business_id, name = EXCLUDED.name,
			channel = EXCLUDED.channel, capabilities = EXCLUDED.capabilities`,
		a.ID, a.BusinessID, a.Name, a.Channel, mustJSON(a.Capabilities, "[]"))
	return err
}

func (s *PostgresStore) GetAssistant(ctx context.Context, id string) (*models.Assistant, error) {
	var (
		a    models.Assistant
		caps []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, name, channel, capabilities FROM assistants WHERE id = $1`, id).
		Scan(&a.ID, &a.BusinessID, &a.Name, &a.Channel, &caps)
	if err != nil {
		return nil, notFound(err, "assistant", id)
	}
	if len(caps) > 0 {
		_ = json.Unmarshal(caps, &a.Capabilities)
	}
	return &a, nil
}

// ── Capability Store ────────────────────────────────────────

func (s *PostgresStore) UpsertCapability(ctx context.Context, c *models.Capability) error {
	var fn []byte
	if c.Function != nil {
		fn = mustJSON(c.Function, "null")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO capabilities (id, name, tool_description, instruction, function, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, tool_description = EXCLUDED.tool_description,
			instruction = EXCLUDED.instruction, function = EXCLUDED.function,
			custom_fields = EXCLUDED.custom_fields`,
		c.ID, c.Name, c.ToolDescription, c.Instruction, fn, mustJSON(c.CustomFields, "[]"))
	return err
}

const capabilityColumns = `id, name, tool_description, instruction, function, custom_fields`

func scanCapability(row pgx.Row) (*models.Capability, error) {
	var (
		c          models.Capability
		fn, fields []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.ToolDescription, &c.Instruction, &fn, &fields); err != nil {
		return nil, err
	}
	if len(fn) > 0 && string(fn) != "null" {
		var spec models.FunctionSpec
		if err := json.Unmarshal(fn, &spec); err == nil {
			c.Function = &spec
		}
	}
	if len(fields) > 0 {
		_ = json.Unmarshal(fields, &c.CustomFields)
	}
	return &c, nil
}

func (s *PostgresStore) GetCapability(ctx context.Context, id string) (*models.Capability, error) {
	c, err := scanCapability(s.pool.QueryRow(ctx, `SELECT `+capabilityColumns+` FROM capabilities WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "capability", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCapabilities(ctx context.Context) ([]models.Capability, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+capabilityColumns+` FROM capabilities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var result []models.Capability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// ── Offer Store ─────────────────────────────────────────────

func (s *PostgresStore) UpsertOffer(ctx context.Context, o *models.Offer) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO offers (id, business_id, name, description, type, value, code, conditions,
			payment_link, status, starts_at, ends_at, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			business_id = EXCLUDED.business_id, name = EXCLUDED.name, description = EXCLUDED.description,
			type = EXCLUDED.type, value = EXCLUDED.value, code = EXCLUDED.code,
			conditions = EXCLUDED.conditions, payment_link = EXCLUDED.payment_link, status = EXCLUDED.status,
			starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at, images = EXCLUDED.images`,
		o.ID, o.BusinessID, o.Name, o.Description, o.Type, o.Value, o.Code, o.Conditions,
		o.PaymentLink, o.Status, o.StartsAt, o.EndsAt, mustJSON(o.Images, "[]"), createdAt)
	return err
}

const offerColumns = `id, business_id, name, description, type, value, code, conditions,
	payment_link, status, starts_at, ends_at, images, created_at`

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var (
		o      models.Offer
		images []byte
	)
	if err := row.Scan(&o.ID, &o.BusinessID, &o.Name, &o.Description, &o.Type, &o.Value, &o.Code,
		&o.Conditions, &o.PaymentLink, &o.Status, &o.StartsAt, &o.EndsAt, &images, &o.CreatedAt); err != nil {
		return nil, err
	}
	if len(images) > 0 {
		_ = json.Unmarshal(images, &o.Images)
	}
	return &o, nil
}

func (s *PostgresStore) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	o, err := scanOffer(s.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "offer", id)
	}
	return o, nil
}

func (s *PostgresStore) ListOffers(ctx context.Context, businessID string) ([]models.Offer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers WHERE business_id = $1
		ORDER BY created_at DESC`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var result []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}
