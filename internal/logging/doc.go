// Package logging provides structured logging for modelvault.
//
// Logger wraps Zap with context-aware methods. Every entry logged with a
// context carries the correlation fields stored in it: OpenTelemetry
// trace_id/span_id, model.name and load.id.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithModel(ctx, "acme/punctuate")
//	ctx = logging.WithLoadID(ctx, logging.NewLoadID())
//	logger.Info(ctx, "model loaded", zap.Int("files", n))
//
// # Secret Redaction
//
// Fields named like credentials (password, salt, secret, token, ...) are
// replaced with [REDACTED] by the encoder, so a derivation password passed to
// a log call by mistake is never written. Use Secret or RedactedString for
// explicit redaction.
//
// # Sampling
//
// Below-error entries are sampled per tick; errors are never sampled.
// Disable with cfg.Sampling.Enabled = false.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := encryptor.New(key, encryptor.WithLogger(tl.Underlying()))
//	tl.AssertLogged(t, zapcore.WarnLevel, "no files found")
//	tl.AssertNoSecrets(t)
package logging
