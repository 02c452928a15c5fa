package storage

import (
	"encoding/json"
	"fmt"
)

// Collection is a typed view over one collection of an Engine.
type Collection[T any] struct {
	engine Engine
	name   string
}

// NewCollection returns a typed view of the named collection.
func NewCollection[T any](engine Engine, name string) *Collection[T] {
	return &Collection[T]{engine: engine, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get loads one entity. It returns nil, nil when the entity does not exist.
func (c *Collection[T]) Get(id string) (*T, error) {
	var v T
	found, err := c.engine.FindByID(c.name, id, &v)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

// All decodes every entity in the collection. Entities that do not decode into
// T are skipped and counted, together with files the engine could not parse.
func (c *Collection[T]) All() ([]T, int, error) {
	raws, err := c.engine.FindAll(c.name)
	if err != nil {
		return nil, 0, err
	}
	skipped := len(c.engine.LastSkipped(c.name))
	items := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			skipped++
			continue
		}
		items = append(items, v)
	}
	return items, skipped, nil
}

// Put saves an entity under id.
func (c *Collection[T]) Put(id string, v T) error {
	if err := c.engine.Save(c.name, id, v); err != nil {
		return fmt.Errorf("storing %s: %w", c.name, err)
	}
	return nil
}

// Delete removes an entity, reporting whether it existed.
func (c *Collection[T]) Delete(id string) (bool, error) {
	return c.engine.Delete(c.name, id)
}

// Invalidate drops the cached copy of the collection.
func (c *Collection[T]) Invalidate() {
	c.engine.Invalidate(c.name)
}
