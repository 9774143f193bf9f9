package model

import "fmt"

type MemoryRecord struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	SessionID    string            `json:"session_id"`
	Position     int               `json:"position"`
	ChunkText    string            `json:"chunk_text"`
	CreatedAt    int64             `json:"created_at"`
	Translations map[string]string `json:"translations,omitempty"`
}

// Translation returns the stored translation for lang, if any.
func (r *MemoryRecord) Translation(lang string) (string, bool) {
	if r == nil || r.Translations == nil {
		return "", false
	}
	v, ok := r.Translations[lang]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type MemoryMatch struct {
	MemoryRecord
	Distance float32 `json:"distance"`
}

func MemoryRecordID(username, sessionID string, position int) string {
	return fmt.Sprintf("%s_%s_chunk_%d", username, sessionID, position)
}
