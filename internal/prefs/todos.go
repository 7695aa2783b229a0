package prefs

import (
	"context"
	"fmt"

	"famboard/internal/todo"
)

// TodoLists returns the IDs of lists holding at least one item.
func (d *DB) TodoLists(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT list_id FROM todo_items ORDER BY list_id`)
	if err != nil {
		return nil, fmt.Errorf("prefs: todo lists: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TodoItems returns a list in insertion order, in the form the todo store
// loads.
func (d *DB) TodoItems(ctx context.Context, listID string) ([]todo.RawItem, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT uid, summary, description, status, due_kind, due_value
		 FROM todo_items WHERE list_id = ? ORDER BY created_at_unixms, rowid`, listID)
	if err != nil {
		return nil, fmt.Errorf("prefs: todo items %q: %w", listID, err)
	}
	defer rows.Close()

	out := []todo.RawItem{}
	for rows.Next() {
		var it todo.RawItem
		var kind, value string
		if err := rows.Scan(&it.UID, &it.Summary, &it.Description, &it.Status, &kind, &value); err != nil {
			return nil, err
		}
		switch kind {
		case todo.DateOnlyKind.String():
			it.DueDate = value
		case todo.DateTimeKind.String():
			it.DueDateTime = value
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func status(it todo.Item) string {
	if it.Completed {
		return "completed"
	}
	return "needs_action"
}

func dueColumns(it todo.Item) (string, string) {
	if it.Due.Kind() == todo.NoDueKind {
		return "", ""
	}
	return it.Due.Kind().String(), it.Due.String()
}

// AddItem implements todo.Backend.
func (d *DB) AddItem(ctx context.Context, listID string, it todo.Item) error {
	kind, value := dueColumns(it)
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO todo_items (list_id, uid, summary, description, status, due_kind, due_value, created_at_unixms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		listID, it.ID, it.Summary, it.Description, status(it), kind, value, d.clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("prefs: add todo %q: %w", it.ID, err)
	}
	return nil
}

// UpdateItem implements todo.Backend.
func (d *DB) UpdateItem(ctx context.Context, listID string, it todo.Item) error {
	kind, value := dueColumns(it)
	res, err := d.db.ExecContext(ctx,
		`UPDATE todo_items SET summary = ?, description = ?, status = ?, due_kind = ?, due_value = ?
		 WHERE list_id = ? AND uid = ?`,
		it.Summary, it.Description, status(it), kind, value, listID, it.ID)
	if err != nil {
		return fmt.Errorf("prefs: update todo %q: %w", it.ID, err)
	}
	return affectedOne(res, it.ID)
}

// RemoveItem implements todo.Backend.
func (d *DB) RemoveItem(ctx context.Context, listID, itemID string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM todo_items WHERE list_id = ? AND uid = ?`, listID, itemID)
	if err != nil {
		return fmt.Errorf("prefs: remove todo %q: %w", itemID, err)
	}
	return affectedOne(res, itemID)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func affectedOne(res rowsAffecter, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("todo %q: %w", id, todo.ErrNotFound)
	}
	return nil
}
