package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/binder/pkg/store/index"
)

// maxConflictRetries bounds retries of an Update that lost an MVCC race.
const maxConflictRetries = 3

type session struct {
	store    *BadgerIndexStore
	released bool
}

func (c *session) check(ctx context.Context) error {
	if c.released {
		return index.ErrReleased
	}
	return ctx.Err()
}

func (c *session) Find(ctx context.Context, id int64) (*index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	var found *index.Entry
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyEntry(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e, err := decodeEntry(val)
			if err != nil {
				return err
			}
			found = &e
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find id %d: %w: %w", id, index.ErrUnavailable, err)
	}
	return found, nil
}

func (c *session) FindByPath(ctx context.Context, path string) (*index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	var found *index.Entry
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyPath(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err := decodeID(val)
			if err != nil {
				return err
			}
			found = &index.Entry{ID: id, Path: path}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find %q: %w: %w", path, index.ErrUnavailable, err)
	}
	return found, nil
}

func (c *session) ListAll(ctx context.Context) ([]index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	entries := []index.Entry{}
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPath)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), prefixPath)
			err := item.Value(func(val []byte) error {
				id, err := decodeID(val)
				if err != nil {
					return err
				}
				entries = append(entries, index.Entry{ID: id, Path: path})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index scan: %w: %w", index.ErrUnavailable, err)
	}
	return entries, nil
}

func (c *session) Insert(ctx context.Context, e index.Entry) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	value, err := encodeEntry(e)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = c.store.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(keyPath(e.Path)); err == nil {
				return fmt.Errorf("insert %q: %w", e.Path, index.ErrDuplicatePath)
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if _, err := txn.Get(keyEntry(e.ID)); err == nil {
				return fmt.Errorf("insert id %d: %w", e.ID, index.ErrDuplicateID)
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if err := txn.Set(keyEntry(e.ID), value); err != nil {
				return err
			}
			return txn.Set(keyPath(e.Path), encodeID(e.ID))
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		break
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, index.ErrDuplicatePath), errors.Is(err, index.ErrDuplicateID):
		return err
	default:
		return fmt.Errorf("insert %q: %w: %w", e.Path, index.ErrUnavailable, err)
	}
}

func (c *session) RemoveByPath(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = c.store.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(keyPath(path))
			if err == badger.ErrKeyNotFound {
				return nil
			}
			if err != nil {
				return err
			}

			var id int64
			if err := item.Value(func(val []byte) error {
				id, err = decodeID(val)
				return err
			}); err != nil {
				return err
			}

			if err := txn.Delete(keyEntry(id)); err != nil {
				return err
			}
			return txn.Delete(keyPath(path))
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		break
	}

	if err != nil {
		return fmt.Errorf("remove %q: %w: %w", path, index.ErrUnavailable, err)
	}
	return nil
}

func (c *session) Release() {
	if c.released {
		return
	}
	c.released = true
	c.store.slots.Release()
}
