package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Property is a typed scalar stored under a unique name.
// Value is string for PropertyText, int64 for PropertyInteger and float64
// for PropertyReal.
type Property struct {
	Name  string
	Type  PropertyType
	Value any
}

// Int64 returns the value of an integer property.
func (p Property) Int64() (int64, bool) {
	v, ok := p.Value.(int64)
	return v, ok && p.Type == PropertyInteger
}

// GetProperty reads a property by name. The boolean is false when no
// property with that name exists.
func (s *Store) GetProperty(ctx context.Context, name string) (Property, bool, error) {
	var typ int
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT type, value FROM db_properties WHERE name = ?
	`, name).Scan(&typ, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Property{}, false, nil
	}
	if err != nil {
		return Property{}, false, fmt.Errorf("get property %q: %w", name, err)
	}

	value, err := unmarshalPropertyValue(PropertyType(typ), data)
	if err != nil {
		return Property{}, false, fmt.Errorf("get property %q: %w", name, err)
	}

	return Property{Name: name, Type: PropertyType(typ), Value: value}, true, nil
}

// UpsertProperty inserts or overwrites a property.
func (s *Store) UpsertProperty(ctx context.Context, name string, typ PropertyType, value any) error {
	data, err := marshalPropertyValue(typ, value)
	if err != nil {
		return fmt.Errorf("upsert property %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO db_properties (name, type, value)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET type = excluded.type, value = excluded.value
	`, name, int(typ), data)
	if err != nil {
		return fmt.Errorf("upsert property %q: %w", name, err)
	}
	return nil
}

// AdvanceIntProperty sets an integer property to candidate only if the
// property is absent or currently holds a smaller value. The upsert runs as
// a single statement, so the stored value can never move backwards.
//
// Returns true when a row was inserted or updated.
func (s *Store) AdvanceIntProperty(ctx context.Context, name string, candidate int64) (bool, error) {
	data, err := marshalPropertyValue(PropertyInteger, candidate)
	if err != nil {
		return false, fmt.Errorf("advance property %q: %w", name, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO db_properties (name, type, value)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET type = excluded.type, value = excluded.value
		WHERE db_properties.type != excluded.type
		   OR CAST(db_properties.value AS INTEGER) < CAST(excluded.value AS INTEGER)
	`, name, int(PropertyInteger), data)
	if err != nil {
		return false, fmt.Errorf("advance property %q: %w", name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance property %q: rows affected: %w", name, err)
	}
	return n > 0, nil
}

// ListProperties returns all properties whose name ends with suffix,
// ordered by name. An empty suffix lists everything.
func (s *Store) ListProperties(ctx context.Context, suffix string) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, value FROM db_properties
		WHERE substr(name, -length(?)) = ? OR ? = ''
		ORDER BY name ASC
	`, suffix, suffix, suffix)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	props := []Property{}
	for rows.Next() {
		var p Property
		var typ int
		var data string
		if err := rows.Scan(&p.Name, &typ, &data); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		p.Type = PropertyType(typ)
		p.Value, err = unmarshalPropertyValue(p.Type, data)
		if err != nil {
			return nil, fmt.Errorf("list properties: %s: %w", p.Name, err)
		}
		props = append(props, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}

	return props, nil
}
