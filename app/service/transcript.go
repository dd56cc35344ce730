package service

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TranscriptSegment 转写结果中的一个语音片段
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptDocument 以视频为键持久化的转写文档
type TranscriptDocument struct {
	VideoID             uint                `json:"video_id"`
	YoutubeID           string              `json:"youtube_id"`
	Duration            float64             `json:"duration"`
	Language            string              `json:"language"`
	LanguageProbability float64             `json:"language_probability"`
	Segments            []TranscriptSegment `json:"segments"`
	Model               string              `json:"model"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at,omitempty"`
}

// TranscriptStore 转写文档的文件存取
type TranscriptStore struct{}

// NewTranscriptStore 创建转写文档存取器
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{}
}

// Read 读取转写文档
func (s *TranscriptStore) Read(path string) (*TranscriptDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc TranscriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析转写文档失败: %w", err)
	}
	return &doc, nil
}

// Write 写入转写文档
func (s *TranscriptStore) Write(path string, doc *TranscriptDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化转写文档失败: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// UpdateSegments 只替换文档中的 segments 并刷新 updated_at，其余字段保持不变
func (s *TranscriptStore) UpdateSegments(path string, segments []TranscriptSegment) (*TranscriptDocument, error) {
	doc, err := s.Read(path)
	if err != nil {
		return nil, err
	}

	doc.Segments = segments
	doc.UpdatedAt = time.Now().Format(time.RFC3339)

	if err := s.Write(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
