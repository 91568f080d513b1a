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
	"context"

	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
	"gorm.io/gorm"
)

// CheckpointRepository implements storage.CheckpointRepository on the
// same database handle as the asset repository.
type CheckpointRepository struct {
	db *gorm.DB
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a checkpoint repository sharing the
// asset repository's connection pool.
func NewCheckpointRepository(repo *Repository) *CheckpointRepository {
	return &CheckpointRepository{db: repo.db}
}

// Close is a no-op. The connection pool is owned by the asset
// repository and closed there.
func (c *CheckpointRepository) Close() error {
	return nil
}

// SaveCheckpoint records lastID as the resume point for the named job.
func (c *CheckpointRepository) SaveCheckpoint(ctx context.Context, name string, lastID core.ID) error {
	return c.db.WithContext(ctx).Exec(`
		INSERT INTO maintenance_checkpoints (name, last_id, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE
		SET last_id = EXCLUDED.last_id, updated_at = CURRENT_TIMESTAMP`,
		name, int64(lastID)).Error
}

// LoadCheckpoint retrieves the resume point for the named job. A missing
// checkpoint reports found=false, not an error.
func (c *CheckpointRepository) LoadCheckpoint(ctx context.Context, name string) (core.ID, bool, error) {
	var lastID int64
	res := c.db.WithContext(ctx).Raw(
		`SELECT last_id FROM maintenance_checkpoints WHERE name = ?`, name,
	).Scan(&lastID)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return core.ID(lastID), true, nil
}

// ClearCheckpoint removes the named job's checkpoint if present.
func (c *CheckpointRepository) ClearCheckpoint(ctx context.Context, name string) error {
	return c.db.WithContext(ctx).Exec(
		`DELETE FROM maintenance_checkpoints WHERE name = ?`, name).Error
}
