package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// WatermarkRepository stores poll watermarks, one JSON document per trigger
// instance.
type WatermarkRepository struct {
	root string
}

func NewWatermarkRepository(root string) *WatermarkRepository {
	return &WatermarkRepository{root: root}
}

// Watermark retrieves the watermark for a trigger instance. Returns
// ErrWatermarkNotFound before the first successful poll.
func (wr *WatermarkRepository) Watermark(_ context.Context, triggerInstanceID string) (*models.PollWatermark, error) {
	filePath := filepath.Clean(path.Join(wr.root, "watermarks", triggerInstanceID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWatermarkNotFound
		}

		return nil, fmt.Errorf("failed to fetch watermark %s: %w", triggerInstanceID, err)
	}

	var watermark models.PollWatermark

	err = json.Unmarshal(body, &watermark)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal watermark %s: %w", triggerInstanceID, err)
	}

	return &watermark, nil
}

// SaveWatermark writes the watermark to the file system.
func (wr *WatermarkRepository) SaveWatermark(_ context.Context, watermark *models.PollWatermark) error {
	err := os.MkdirAll(path.Join(wr.root, "watermarks"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create watermarks directory: %w", err)
	}

	data, err := json.MarshalIndent(watermark, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watermark %s: %w", watermark.TriggerInstanceID, err)
	}

	filePath := path.Join(wr.root, "watermarks", watermark.TriggerInstanceID+".json")

	return os.WriteFile(filePath, data, 0600)
}
