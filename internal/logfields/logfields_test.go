package logfields

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringAttrs(t *testing.T) {
	attrs := map[string]slog.Attr{
		KeyRunID:   RunID("123"),
		KeyStage:   Stage("dash"),
		KeyLibrary: Library("seaborn"),
		KeyVersion: Version("0.13.2"),
		KeyTag:     Tag("v0.13.2"),
		KeyRepo:    Repository("mwaskom/seaborn"),
		KeyBranch:  Branch("seaborn-0.13.2"),
		KeyPath:    Path("/tmp/x"),
		KeyURL:     URL("http://example"),
		KeyCommand: Command("make html"),
	}
	for key, attr := range attrs {
		assert.Equal(t, key, attr.Key)
		assert.Equal(t, slog.KindString, attr.Value.Kind(), key)
	}
	assert.Equal(t, "seaborn-0.13.2", attrs[KeyBranch].Value.String())
}

func TestNumericAttrs(t *testing.T) {
	d := DurationMS(12.5)
	assert.Equal(t, KeyDurationMS, d.Key)
	assert.InDelta(t, 12.5, d.Value.Float64(), 0)

	a := Attempt(2)
	assert.Equal(t, KeyAttempt, a.Key)
	assert.EqualValues(t, 2, a.Value.Int64())
}

func TestErrorAttr(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("Stage finished", Stage("push"), Error(nil))
	assert.Contains(t, buf.String(), `stage=push error=""`)
}
