package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStored(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		wantKind Kind
		wantID   string
		wantErr  error
	}{
		{
			name:     "document",
			result:   `{"message_id":1,"document":{"file_id":"doc"}}`,
			wantKind: KindDocument,
			wantID:   "doc",
		},
		{
			name:     "photo ladder picks last",
			result:   `{"message_id":1,"photo":[{"file_id":"a"},{"file_id":"b"},{"file_id":"c"}]}`,
			wantKind: KindPhoto,
			wantID:   "c",
		},
		{
			name:     "document wins over photo",
			result:   `{"message_id":1,"document":{"file_id":"doc"},"photo":[{"file_id":"a"}]}`,
			wantKind: KindDocument,
			wantID:   "doc",
		},
		{
			name:     "video",
			result:   `{"message_id":1,"video":{"file_id":"vid"}}`,
			wantKind: KindVideo,
			wantID:   "vid",
		},
		{
			name:     "animation",
			result:   `{"message_id":1,"animation":{"file_id":"gif"}}`,
			wantKind: KindAnimation,
			wantID:   "gif",
		},
		{
			name:    "empty photo array",
			result:  `{"message_id":1,"photo":[]}`,
			wantErr: ErrNoStoredFile,
		},
		{
			name:    "nothing stored",
			result:  `{"message_id":1,"text":"hello"}`,
			wantErr: ErrNoStoredFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m message
			require.NoError(t, json.Unmarshal([]byte(tt.result), &m))

			got, err := m.Stored()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantID, got.FileID)
		})
	}
}
