package logging

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/modelvault/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Warn(ctx, "no files to encrypt", zap.String("dir", "/models/empty"))
	tl.Info(ctx, "done", Secret("password", config.Secret("pw")))

	tl.AssertLogged(t, zapcore.WarnLevel, "no files")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "no files")
	tl.AssertField(t, "no files", "dir", "/models/empty")
	tl.AssertNoSecrets(t)
	assert.Len(t, tl.All(), 2)

	tl.Reset()
	assert.Empty(t, tl.All())
}
