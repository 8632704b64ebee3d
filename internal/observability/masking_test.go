package observability

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@b.com", MaskEmail("alice@b.com"))
	assert.Equal(t, "***", MaskEmail("no-at-sign"))
	assert.Equal(t, "***", MaskEmail("@b.com"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestMaskEmailKeepsMultibyteRune(t *testing.T) {
	masked := MaskEmail("émile@bank.test")
	assert.Equal(t, "é***@bank.test", masked)
	assert.True(t, utf8.ValidString(masked))

	assert.Equal(t, "李***@bank.test", MaskEmail("李雷@bank.test"))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "*****6789", MaskIdentifier("123456789"))
	assert.Equal(t, "***", MaskIdentifier("123"))
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordAuth("expired")
	m.RecordGatewayRejection("/api/x")

	snap := m.Snapshot()
	snap.AuthOutcomes["expired"] = 99

	assert.Equal(t, int64(1), m.Snapshot().AuthOutcomes["expired"])
	assert.Equal(t, int64(1), m.Snapshot().GatewayRejections["/api/x"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuth("x")
		m.RecordGatewayRejection("/x")
		m.RecordError("/x", "GET", "E")
		_ = m.Snapshot()
	})
}
