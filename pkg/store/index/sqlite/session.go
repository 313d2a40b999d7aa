package sqlite

import (
	"context"
	"fmt"

	"github.com/marmos91/binder/pkg/store/index"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type session struct {
	store *SQLiteIndexStore
	conn  *sqlite.Conn
}

// begin checks the session is live and binds ctx to the connection's
// interrupt. The returned func restores it.
func (c *session) begin(ctx context.Context) (func(), error) {
	if c.conn == nil {
		return nil, index.ErrReleased
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.conn.SetInterrupt(ctx.Done())
	return func() { c.conn.SetInterrupt(nil) }, nil
}

func (c *session) Find(ctx context.Context, id int64) (*index.Entry, error) {
	return c.findOne(ctx, "SELECT id, entry_path FROM file_entry WHERE id = ?", id)
}

func (c *session) FindByPath(ctx context.Context, path string) (*index.Entry, error) {
	return c.findOne(ctx, "SELECT id, entry_path FROM file_entry WHERE entry_path = ?", path)
}

func (c *session) findOne(ctx context.Context, query string, arg any) (*index.Entry, error) {
	done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var found *index.Entry
	err = sqlitex.Execute(c.conn, query, &sqlitex.ExecOptions{
		Args: []any{arg},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = &index.Entry{ID: stmt.ColumnInt64(0), Path: stmt.ColumnText(1)}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index lookup: %w: %w", index.ErrUnavailable, err)
	}
	return found, nil
}

func (c *session) ListAll(ctx context.Context) ([]index.Entry, error) {
	done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	entries := []index.Entry{}
	err = sqlitex.Execute(c.conn, "SELECT id, entry_path FROM file_entry ORDER BY entry_path", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, index.Entry{ID: stmt.ColumnInt64(0), Path: stmt.ColumnText(1)})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index scan: %w: %w", index.ErrUnavailable, err)
	}
	return entries, nil
}

func (c *session) Insert(ctx context.Context, e index.Entry) error {
	done, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = sqlitex.Execute(c.conn, "INSERT INTO file_entry (id, entry_path) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{e.ID, e.Path},
	})
	if err == nil {
		return nil
	}

	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintPrimaryKey:
		return fmt.Errorf("insert id %d: %w", e.ID, index.ErrDuplicateID)
	case sqlite.ResultConstraintUnique:
		return fmt.Errorf("insert %q: %w", e.Path, index.ErrDuplicatePath)
	default:
		return fmt.Errorf("insert %q: %w: %w", e.Path, index.ErrUnavailable, err)
	}
}

func (c *session) RemoveByPath(ctx context.Context, path string) error {
	done, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = sqlitex.Execute(c.conn, "DELETE FROM file_entry WHERE entry_path = ?", &sqlitex.ExecOptions{
		Args: []any{path},
	})
	if err != nil {
		return fmt.Errorf("remove %q: %w: %w", path, index.ErrUnavailable, err)
	}
	return nil
}

func (c *session) Release() {
	if c.conn == nil {
		return
	}
	c.store.pool.Put(c.conn)
	c.conn = nil
}
