package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSegmentLine(t *testing.T) {
	seg, ok := parseSegmentLine("[00:01:02.500 --> 00:01:05.120]  olá pessoal")
	assert.True(t, ok)
	assert.InDelta(t, 62.5, seg.Start, 1e-9)
	assert.InDelta(t, 65.12, seg.End, 1e-9)
	assert.Equal(t, "olá pessoal", seg.Text)

	// 逗号作毫秒分隔符同样接受
	seg, ok = parseSegmentLine("[01:00:00,000 --> 01:00:01,000] texto")
	assert.True(t, ok)
	assert.InDelta(t, 3600, seg.Start, 1e-9)
	assert.InDelta(t, 3601, seg.End, 1e-9)

	// 空文本片段
	seg, ok = parseSegmentLine("[00:00:00.000 --> 00:00:01.000]")
	assert.True(t, ok)
	assert.Equal(t, "", seg.Text)

	for _, line := range []string{
		"",
		"whisper_init_state: compute buffer",
		"[0:00:00.000 --> 0:00:01.000] 小时位不足两位",
		"[00:00:00.000 -> 00:00:01.000] 箭头错误",
	} {
		_, ok := parseSegmentLine(line)
		assert.False(t, ok, "行 %q 不应被解析", line)
	}
}

func TestTimestampSeconds(t *testing.T) {
	assert.InDelta(t, 0, timestampSeconds("00", "00", "00", "000"), 1e-9)
	assert.InDelta(t, 3661.5, timestampSeconds("01", "01", "01", "500"), 1e-9)
	assert.InDelta(t, 59.999, timestampSeconds("00", "00", "59", "999"), 1e-9)
}

func TestDetectedLanguagePattern(t *testing.T) {
	m := detectedLanguagePattern.FindStringSubmatch(
		"whisper_full_with_state: auto-detected language: pt (p = 0.987654)")
	assert.NotNil(t, m)
	assert.Equal(t, "pt", m[1])
	assert.Equal(t, "0.987654", m[2])

	assert.Nil(t, detectedLanguagePattern.FindStringSubmatch("language: pt"))
}
