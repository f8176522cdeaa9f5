package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"ab":                    "***",
		"juana":                 "j…a",
		"Juana@Tienda.com":      "j…@t….com",
		" x@y.com ":             "x@y.com",
		"cajero@pos.example.ar": "c…@p….example.ar",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core))

	From(ctx).Info("invited", Email("juana@tienda.com"), Component("test"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "j…@t….com", fields["email"])
		assert.Equal(t, "test", fields["component"])
	}
}

func TestFrom_FallsBackToSingleton(t *testing.T) {
	assert.NotNil(t, From(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}
