package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// updatableTables is the closed set of tables the update_field action may
// target, mapped to their org scoping column.
var updatableTables = map[string]struct{}{
	"contacts": {},
	"quotes":   {},
	"tasks":    {},
}

// fieldNamePattern restricts update_field column names to plain identifiers;
// table and field are interpolated into SQL and must never carry user syntax.
var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// RecordRepository handles the side-effect records actions produce.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

// AppendMessage inserts one outbound message audit record.
func (r *RecordRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, org_id, run_id, to_number, body, sid, status, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.OrgID,
		nullableString(message.RunID),
		message.To,
		message.Body,
		nullableString(message.SID),
		nullableString(message.Status),
		string(message.Direction),
		message.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("AppendMessage", message.ID, err)
	}

	return nil
}

// CreateTask inserts one follow-up task record.
func (r *RecordRepository) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, org_id, run_id, entity_type, entity_id, title, status, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.OrgID,
		nullableString(task.RunID),
		task.EntityType,
		task.EntityID,
		task.Title,
		string(task.Status),
		task.DueAt,
		task.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("CreateTask", task.ID, err)
	}

	return nil
}

// UpdateRecordField performs a targeted single-field update on the named
// record. Table and field names are validated before being interpolated.
func (r *RecordRepository) UpdateRecordField(ctx context.Context, orgID, table, recordID, field string, value any) error {
	if _, ok := updatableTables[table]; !ok {
		return persistence.NewStoreError("UpdateRecordField", recordID, persistence.ErrUnknownTable)
	}

	if !fieldNamePattern.MatchString(field) {
		return persistence.NewStoreError("UpdateRecordField", recordID, fmt.Errorf("invalid field name %q", field))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $3, updated_at = NOW() WHERE id = $1 AND org_id = $2`, table, field)

	result, err := r.db.ExecContext(ctx, query, recordID, orgID, value)
	if err != nil {
		return persistence.NewStoreError("UpdateRecordField", recordID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("UpdateRecordField", recordID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateRecordField", recordID, persistence.ErrRecordNotFound)
	}

	return nil
}
