// Package store holds the on-device cart used when no user session is
// active: confirmed detections are kept locally instead of being persisted
// to the remote database.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const cartBucket = "cart_items"

// LocalItem mirrors the remote cart item shape; amounts are centavos.
type LocalItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	PrecoAvulso  int64     `json:"preco_avulso"`
	PrecoCartao  int64     `json:"preco_cartao"`
	PrecoAtacado int64     `json:"preco_atacado"`
	Unit         string    `json:"unit,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// LocalCart is a bbolt-backed cart for anonymous scanning sessions.
type LocalCart struct {
	db *bbolt.DB
}

func Open(path string) (*LocalCart, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cartBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cart bucket: %w", err)
	}
	return &LocalCart{db: db}, nil
}

// Add stores an item, assigning an id when missing, and returns it.
func (c *LocalCart) Add(item LocalItem) (LocalItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	err := c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return tx.Bucket([]byte(cartBucket)).Put([]byte(item.ID), data)
	})
	if err != nil {
		return LocalItem{}, err
	}
	return item, nil
}

// Get retrieves one item by id.
func (c *LocalCart) Get(id string) (*LocalItem, error) {
	var item *LocalItem
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(cartBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("item not found: %s", id)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns every stored item.
func (c *LocalCart) List() ([]LocalItem, error) {
	items := make([]LocalItem, 0)
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cartBucket)).ForEach(func(k, v []byte) error {
			var item LocalItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Update rewrites an existing item.
func (c *LocalCart) Update(item LocalItem) error {
	if item.ID == "" {
		return fmt.Errorf("item id required")
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cartBucket))
		if b.Get([]byte(item.ID)) == nil {
			return fmt.Errorf("item not found: %s", item.ID)
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return b.Put([]byte(item.ID), data)
	})
}

// Remove deletes one item.
func (c *LocalCart) Remove(id string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cartBucket)).Delete([]byte(id))
	})
}

// Clear drops every item.
func (c *LocalCart) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(cartBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(cartBucket))
		return err
	})
}

func (c *LocalCart) Close() error {
	return c.db.Close()
}
