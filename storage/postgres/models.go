// Copyright 2025 Mercil Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ffirst2551/mercil/core"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// assetRow is the database projection of core.Asset. The geography
// column is read back as ST_X/ST_Y pairs, never as raw EWKB.
type assetRow struct {
	Id              int64
	Name            string
	Description     string
	Address         string
	Category        string
	Latitude        *float64
	Longitude       *float64
	Embedding       *pgvector.Vector
	ImageEmbeddings *pgvector.Vector
	Tags            pq.StringArray `gorm:"type:text[]"`
	Images          []byte
	Metadata        []byte
	CreatedAt       time.Time
}

// matchRow carries an asset row plus its similarity score.
type matchRow struct {
	assetRow
	Similarity float64
}

// toAsset converts a database row to the domain type.
func (row *assetRow) toAsset() (*core.Asset, error) {
	asset := &core.Asset{
		Id:          core.ID(row.Id),
		Name:        row.Name,
		Description: row.Description,
		Address:     row.Address,
		Category:    row.Category,
		Tags:        row.Tags,
		CreatedAt:   row.CreatedAt,
	}

	if row.Latitude != nil && row.Longitude != nil {
		asset.Location = &core.Location{
			Latitude:  *row.Latitude,
			Longitude: *row.Longitude,
		}
	}
	if row.Embedding != nil {
		asset.TextEmbedding = row.Embedding.Slice()
	}
	if row.ImageEmbeddings != nil {
		asset.ImageEmbedding = row.ImageEmbeddings.Slice()
	}

	if len(row.Images) > 0 {
		if err := json.Unmarshal(row.Images, &asset.Images); err != nil {
			return nil, fmt.Errorf("decoding images column: %w", err)
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &asset.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata column: %w", err)
		}
	}

	return asset, nil
}

// wktPoint renders a location as WKT for ST_GeogFromText, or nil for a
// NULL geography.
func wktPoint(loc *core.Location) any {
	if loc == nil {
		return nil
	}
	return fmt.Sprintf("POINT(%v %v)", loc.Longitude, loc.Latitude)
}

// nullableVector wraps an embedding for use as a query parameter,
// passing NULL when no embedding is present.
func nullableVector(vec []float32) any {
	if vec == nil {
		return nil
	}
	return pgvector.NewVector(vec)
}

// encodeImages renders an image list as a jsonb parameter. An empty
// list is stored as an empty array, not NULL.
func encodeImages(images []core.ImageRecord) ([]byte, error) {
	if images == nil {
		images = []core.ImageRecord{}
	}
	return json.Marshal(images)
}
