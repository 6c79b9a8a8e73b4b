package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// ErrActorNotFound is returned when an actor lookup yields no results.
var ErrActorNotFound = errors.New("actor not found")

// ErrVersionConflict is returned when Save loses an optimistic-lock race:
// the row's version no longer matches the one the caller loaded.
var ErrVersionConflict = errors.New("actor version conflict")

// itemRecord is the JSONB row shape for one owned item instance.
type itemRecord struct {
	ID              string   `json:"id"`
	DefID           string   `json:"def_id"`
	Quantity        int      `json:"quantity"`
	DurabilityValue int      `json:"durability_value"`
	DurabilityMax   int      `json:"durability_max"`
	Equipped        bool     `json:"equipped"`
	Slot            string   `json:"slot,omitempty"`
	Augments        []string `json:"augments,omitempty"`
}

// ActorRepository persists actors, their owned items, and their effect
// ledgers. Items live as a JSONB column on the actor row; effects live in
// the actor_effects table and are replaced wholesale inside the Save
// transaction.
type ActorRepository struct {
	db *pgxpool.Pool
}

// NewActorRepository creates an ActorRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewActorRepository(db *pgxpool.Pool) *ActorRepository {
	return &ActorRepository{db: db}
}

// Create inserts a new actor at version 1, including items and effects.
//
// Precondition: a.ID must be a UUID not already present.
// Postcondition: the actor is durable; a subsequent Get returns version 1.
func (r *ActorRepository) Create(ctx context.Context, a *actor.Actor) error {
	bases, items, err := encodeActor(a)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning actor insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO actors
			(id, name, kind, disposition, owner_id, hidden, pos_x, pos_y,
			 bases, free_points,
			 race_level, race_template, class_level, class_template,
			 profession_level, profession_template,
			 health_current, health_min, health_max,
			 stamina_current, stamina_min, stamina_max,
			 mana_current, mana_min, mana_max,
			 items, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
		        $17,$18,$19,$20,$21,$22,$23,$24,$25,$26,1)`,
		a.ID, a.Name, string(a.Kind), string(a.Disposition), a.OwnerID, a.Hidden,
		a.Pos.X, a.Pos.Y, bases, a.FreePoints,
		a.Race.Level, a.Race.TemplateID, a.Class.Level, a.Class.TemplateID,
		a.Profession.Level, a.Profession.TemplateID,
		a.Health.Current, a.Health.Min, a.Health.Max,
		a.Stamina.Current, a.Stamina.Min, a.Stamina.Max,
		a.Mana.Current, a.Mana.Min, a.Mana.Max,
		items,
	)
	if err != nil {
		return fmt.Errorf("inserting actor: %w", err)
	}

	if err := insertEffects(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get retrieves an actor and its effect ledger, returning the row version
// for use with Save.
//
// Postcondition: Returns (actor, version, nil) or ErrActorNotFound.
func (r *ActorRepository) Get(ctx context.Context, id string) (*actor.Actor, int64, error) {
	a := &actor.Actor{
		Bases:  make(map[stats.Ability]float64, 9),
		Ledger: effect.NewLedger(),
		Items:  make(map[string]*actor.ItemState),
	}
	var (
		bases, items []byte
		version      int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, kind, disposition, owner_id, hidden, pos_x, pos_y,
		       bases, free_points,
		       race_level, race_template, class_level, class_template,
		       profession_level, profession_template,
		       health_current, health_min, health_max,
		       stamina_current, stamina_min, stamina_max,
		       mana_current, mana_min, mana_max,
		       items, version
		FROM actors WHERE id = $1`,
		id,
	).Scan(
		&a.ID, &a.Name, &a.Kind, &a.Disposition, &a.OwnerID, &a.Hidden,
		&a.Pos.X, &a.Pos.Y, &bases, &a.FreePoints,
		&a.Race.Level, &a.Race.TemplateID, &a.Class.Level, &a.Class.TemplateID,
		&a.Profession.Level, &a.Profession.TemplateID,
		&a.Health.Current, &a.Health.Min, &a.Health.Max,
		&a.Stamina.Current, &a.Stamina.Min, &a.Stamina.Max,
		&a.Mana.Current, &a.Mana.Min, &a.Mana.Max,
		&items, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrActorNotFound
		}
		return nil, 0, fmt.Errorf("querying actor: %w", err)
	}

	if err := decodeActor(a, bases, items); err != nil {
		return nil, 0, err
	}
	if err := r.loadEffects(ctx, a); err != nil {
		return nil, 0, err
	}
	return a, version, nil
}

// Save persists an actor's full state if the stored version still matches.
// Effects are replaced wholesale in the same transaction.
//
// Precondition: version must come from the Get that loaded this actor.
// Postcondition: Returns version+1 on success; ErrVersionConflict when
// another writer got there first; ErrActorNotFound if the row is gone.
func (r *ActorRepository) Save(ctx context.Context, a *actor.Actor, version int64) (int64, error) {
	bases, items, err := encodeActor(a)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning actor save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE actors SET
			name = $2, kind = $3, disposition = $4, owner_id = $5, hidden = $6,
			pos_x = $7, pos_y = $8, bases = $9, free_points = $10,
			race_level = $11, race_template = $12,
			class_level = $13, class_template = $14,
			profession_level = $15, profession_template = $16,
			health_current = $17, health_min = $18, health_max = $19,
			stamina_current = $20, stamina_min = $21, stamina_max = $22,
			mana_current = $23, mana_min = $24, mana_max = $25,
			items = $26, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $27`,
		a.ID, a.Name, string(a.Kind), string(a.Disposition), a.OwnerID, a.Hidden,
		a.Pos.X, a.Pos.Y, bases, a.FreePoints,
		a.Race.Level, a.Race.TemplateID, a.Class.Level, a.Class.TemplateID,
		a.Profession.Level, a.Profession.TemplateID,
		a.Health.Current, a.Health.Min, a.Health.Max,
		a.Stamina.Current, a.Stamina.Min, a.Stamina.Max,
		a.Mana.Current, a.Mana.Min, a.Mana.Max,
		items, version,
	)
	if err != nil {
		return 0, fmt.Errorf("updating actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a deleted row.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM actors WHERE id = $1)`, a.ID,
		).Scan(&exists); err != nil {
			return 0, fmt.Errorf("checking actor existence: %w", err)
		}
		if exists {
			return 0, ErrVersionConflict
		}
		return 0, ErrActorNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM actor_effects WHERE actor_id = $1`, a.ID,
	); err != nil {
		return 0, fmt.Errorf("clearing actor effects: %w", err)
	}
	if err := insertEffects(ctx, tx, a); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version + 1, nil
}

// ListByOwner returns all actors owned by the given participant, ordered by
// creation time. Effects are loaded for each.
func (r *ActorRepository) ListByOwner(ctx context.Context, ownerID string) ([]*actor.Actor, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM actors WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing actors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning actor id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	actors := make([]*actor.Actor, 0, len(ids))
	for _, id := range ids {
		a, _, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, nil
}

// Delete removes an actor; its effects cascade.
//
// Postcondition: Returns ErrActorNotFound if no row was deleted.
func (r *ActorRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActorNotFound
	}
	return nil
}

func encodeActor(a *actor.Actor) (bases, items []byte, err error) {
	bases, err = json.Marshal(a.Bases)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding actor bases: %w", err)
	}

	records := make([]itemRecord, 0, len(a.Items))
	for _, st := range a.Items {
		records = append(records, itemRecord{
			ID:              st.ID,
			DefID:           st.DefID,
			Quantity:        st.Quantity,
			DurabilityValue: st.Durability.Value,
			DurabilityMax:   st.Durability.Max,
			Equipped:        st.Equipped,
			Slot:            st.Slot,
			Augments:        st.Augments,
		})
	}
	items, err = json.Marshal(records)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding actor items: %w", err)
	}
	return bases, items, nil
}

func decodeActor(a *actor.Actor, bases, items []byte) error {
	if err := json.Unmarshal(bases, &a.Bases); err != nil {
		return fmt.Errorf("decoding actor bases: %w", err)
	}
	var records []itemRecord
	if err := json.Unmarshal(items, &records); err != nil {
		return fmt.Errorf("decoding actor items: %w", err)
	}
	for _, rec := range records {
		a.Items[rec.ID] = &actor.ItemState{
			ID:       rec.ID,
			DefID:    rec.DefID,
			Quantity: rec.Quantity,
			Durability: actor.Durability{
				Value: rec.DurabilityValue,
				Max:   rec.DurabilityMax,
			},
			Equipped: rec.Equipped,
			Slot:     rec.Slot,
			Augments: rec.Augments,
		}
	}
	return nil
}

func insertEffects(ctx context.Context, tx pgx.Tx, a *actor.Actor) error {
	for _, e := range a.Ledger.All() {
		changes, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("encoding effect changes: %w", err)
		}
		var dot []byte
		if e.DoT != nil {
			if dot, err = json.Marshal(e.DoT); err != nil {
				return fmt.Errorf("encoding effect dot: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO actor_effects
				(id, actor_id, name, origin, category, changes,
				 duration, start_round, disabled, stackable, dot)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.ID, a.ID, e.Name, e.Origin, string(e.Category), changes,
			e.Duration, e.StartRound, e.Disabled, e.Stackable, dot,
		); err != nil {
			return fmt.Errorf("inserting effect %q: %w", e.Name, err)
		}
	}
	return nil
}

func (r *ActorRepository) loadEffects(ctx context.Context, a *actor.Actor) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, origin, category, changes,
		       duration, start_round, disabled, stackable, dot
		FROM actor_effects WHERE actor_id = $1`,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("querying actor effects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e            effect.Effect
			changes, dot []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Origin, &e.Category, &changes,
			&e.Duration, &e.StartRound, &e.Disabled, &e.Stackable, &dot,
		); err != nil {
			return fmt.Errorf("scanning effect row: %w", err)
		}
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return fmt.Errorf("decoding effect changes: %w", err)
		}
		if len(dot) > 0 {
			e.DoT = &effect.DoT{}
			if err := json.Unmarshal(dot, e.DoT); err != nil {
				return fmt.Errorf("decoding effect dot: %w", err)
			}
		}
		a.Ledger.Restore(&e)
	}
	return rows.Err()
}
