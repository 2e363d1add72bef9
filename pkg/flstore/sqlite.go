// Package flstore is the sqlite feature store. Imports write one layer
// per geometry kind; exports read a layer back as a feature source.
package flstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"kmlconv/pkg/model"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS layers (id integer NOT NULL PRIMARY KEY,
 name text, kind integer, crs text, schema text, hasz integer);
CREATE TABLE IF NOT EXISTS features (layer integer, idx integer, geom text, vals text)`

const insertLayer = `insert into layers (id, name, kind, crs, schema, hasz) values ($1,$2,$3,$4,$5,0)`
const insertFeature = `insert into features (layer, idx, geom, vals) values ($1,$2,$3,$4)`
const markLayerZ = `update layers set hasz = 1 where id = $1`

// Rows per transaction while writing.
const batchSize = 1000

type layer struct {
	id   int
	idx  int
	hasZ bool
}

// Store is a model.Sink writing layers into a fresh sqlite file.
type Store struct {
	db      *sql.DB
	nlayers int
	pending int
	intx    bool
}

// Create makes a new store file, replacing any existing file at path.
func Create(path string) (*Store, error) {
	os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("flstore: open %s: %w", path, err)
	}
	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("flstore: tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateSchema(kind model.GeomKind, schema model.Schema) (model.SinkHandle, error) {
	cols, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	if err := s.commit(); err != nil {
		return nil, err
	}
	s.nlayers++
	l := &layer{id: s.nlayers}
	_, err = s.db.Exec(insertLayer, l.id, kind.String(), int(kind), string(model.EPSG4326), string(cols))
	if err != nil {
		return nil, fmt.Errorf("flstore: layer %s: %w", kind, err)
	}
	return l, nil
}

func (s *Store) AddFeature(h model.SinkHandle, f *model.Feature) error {
	l, ok := h.(*layer)
	if !ok {
		return fmt.Errorf("flstore: bad layer handle %T", h)
	}
	geom, err := json.Marshal(&f.Geom)
	if err != nil {
		return err
	}
	vals, err := json.Marshal(f.Values)
	if err != nil {
		return err
	}
	if !s.intx {
		if _, err := s.db.Exec(`BEGIN TRANSACTION`); err != nil {
			return fmt.Errorf("flstore: begin: %w", err)
		}
		s.intx = true
	}
	if _, err := s.db.Exec(insertFeature, l.id, l.idx, string(geom), string(vals)); err != nil {
		return fmt.Errorf("flstore: insert: %w", err)
	}
	if !l.hasZ && f.Geom.HasZ() {
		if _, err := s.db.Exec(markLayerZ, l.id); err != nil {
			return fmt.Errorf("flstore: layer elevation flag: %w", err)
		}
		l.hasZ = true
	}
	l.idx++
	s.pending++
	if s.pending >= batchSize {
		return s.commit()
	}
	return nil
}

func (s *Store) commit() error {
	if !s.intx {
		return nil
	}
	s.intx = false
	s.pending = 0
	if _, err := s.db.Exec(`COMMIT`); err != nil {
		return fmt.Errorf("flstore: commit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	err := s.commit()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// LayerInfo describes one stored layer.
type LayerInfo struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Kind   int    `db:"kind"`
	CRS    string `db:"crs"`
	Schema string `db:"schema"`
	HasZ   bool   `db:"hasz"`
}

// Layers lists the layers of a store file in creation order.
func Layers(path string) ([]LayerInfo, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("flstore: open %s: %w", path, err)
	}
	defer db.Close()
	var infos []LayerInfo
	if err := db.Select(&infos, `SELECT * FROM layers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("flstore: layers: %w", err)
	}
	return infos, nil
}

// Source reads one layer back. It satisfies model.Source and supports
// Reset and OrderBy, so it can drive classified, grouped exports.
type Source struct {
	db     *sqlx.DB
	info   LayerInfo
	schema model.Schema
	count  int
	order  int // schema column index, -1 unordered
	rows   *sqlx.Rows
}

// Open opens the named layer, or the only layer when name is empty.
func Open(path, name string) (*Source, error) {
	infos, err := Layers(path)
	if err != nil {
		return nil, err
	}
	var info *LayerInfo
	for i := range infos {
		if name == "" || infos[i].Name == name {
			info = &infos[i]
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("flstore: no layer %q in %s", name, path)
	}
	if name == "" && len(infos) > 1 {
		return nil, fmt.Errorf("flstore: %s has %d layers, name one", path, len(infos))
	}

	var schema model.Schema
	if err := json.Unmarshal([]byte(info.Schema), &schema); err != nil {
		return nil, fmt.Errorf("flstore: layer schema: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("flstore: open %s: %w", path, err)
	}
	src := &Source{db: db, info: *info, schema: schema, order: -1}
	if err := db.Get(&src.count, `SELECT COUNT(*) FROM features WHERE layer = $1`, info.ID); err != nil {
		db.Close()
		return nil, fmt.Errorf("flstore: count: %w", err)
	}
	return src, nil
}

func (s *Source) Name() string         { return s.info.Name }
func (s *Source) Kind() model.GeomKind { return model.GeomKind(s.info.Kind) }
func (s *Source) CRS() model.CRS       { return model.CRS(s.info.CRS) }
func (s *Source) Schema() model.Schema { return s.schema }
func (s *Source) Count() int           { return s.count }
func (s *Source) HasZ() bool           { return s.info.HasZ }

// OrderBy sorts iteration by one schema column via json_extract on the
// stored value row, with the insertion index as the tie breaker.
func (s *Source) OrderBy(field string) error {
	i := s.schema.Index(field)
	if i < 0 {
		return fmt.Errorf("flstore: no column %q in layer %s", field, s.info.Name)
	}
	s.order = i
	return s.Reset()
}

func (s *Source) Reset() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return nil
}

func (s *Source) query() error {
	q := `SELECT geom, vals FROM features WHERE layer = $1 ORDER BY idx`
	if s.order >= 0 {
		q = fmt.Sprintf(`SELECT geom, vals FROM features WHERE layer = $1 ORDER BY json_extract(vals, '$[%d]'), idx`, s.order)
	}
	rows, err := s.db.Queryx(q, s.info.ID)
	if err != nil {
		return fmt.Errorf("flstore: features: %w", err)
	}
	s.rows = rows
	return nil
}

func (s *Source) Next() (*model.Feature, error) {
	if s.rows == nil {
		if err := s.query(); err != nil {
			return nil, err
		}
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.rows.Close()
		s.rows = nil
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var geom, vals string
	if err := s.rows.Scan(&geom, &vals); err != nil {
		return nil, err
	}
	f := &model.Feature{Schema: s.schema}
	if err := json.Unmarshal([]byte(geom), &f.Geom); err != nil {
		return nil, fmt.Errorf("flstore: geometry row: %w", err)
	}
	if err := json.Unmarshal([]byte(vals), &f.Values); err != nil {
		return nil, fmt.Errorf("flstore: value row: %w", err)
	}
	return f, nil
}

func (s *Source) Close() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.db.Close()
}
